// Package localfs serves content from the bot's own data directory: the
// photo folder tier, the CSV guest list and the table floor-plan images.
package localfs
