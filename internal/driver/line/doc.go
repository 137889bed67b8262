// Package line adapts LINE Messaging API webhooks into neutral chat events,
// answers them through the reply endpoint and installs the default rich menu.
// Transport goes through github.com/line/line-bot-sdk-go/v8.
package line
