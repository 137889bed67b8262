package line

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// messagingAPI is the slice of the Messaging API the driver calls.
type messagingAPI interface {
	RichMenuAPI
	ReplyMessage(ctx context.Context, request *messaging_api.ReplyMessageRequest) error
}

// sdkAPI builds a fresh SDK client per call; SDK clients carry their
// context as mutable state and are not safe to share across requests.
type sdkAPI struct {
	accessToken string
	baseURL     string
	httpClient  *http.Client
}

func (a sdkAPI) client(ctx context.Context) (*messaging_api.MessagingApiAPI, error) {
	options := []messaging_api.MessagingApiAPIOption{}
	if a.httpClient != nil {
		options = append(options, messaging_api.WithHTTPClient(a.httpClient))
	}
	if a.baseURL != "" {
		options = append(options, messaging_api.WithEndpoint(a.baseURL))
	}

	api, err := messaging_api.NewMessagingApiAPI(a.accessToken, options...)
	if err != nil {
		return nil, fmt.Errorf("new messaging api client: %w", err)
	}

	return api.WithContext(ctx), nil
}

func (a sdkAPI) ReplyMessage(ctx context.Context, request *messaging_api.ReplyMessageRequest) error {
	api, err := a.client(ctx)
	if err != nil {
		return err
	}
	if _, err := api.ReplyMessage(request); err != nil {
		return fmt.Errorf("reply message: %w", err)
	}

	return nil
}

func (a sdkAPI) CreateRichMenu(ctx context.Context, request *messaging_api.RichMenuRequest) (string, error) {
	api, err := a.client(ctx)
	if err != nil {
		return "", err
	}
	created, err := api.CreateRichMenu(request)
	if err != nil {
		return "", fmt.Errorf("create rich menu: %w", err)
	}

	return created.RichMenuId, nil
}

func (a sdkAPI) SetRichMenuImage(ctx context.Context, richMenuID string, contentType string, image io.Reader) error {
	blob, err := messaging_api.NewMessagingApiBlobAPI(a.accessToken)
	if err != nil {
		return fmt.Errorf("new messaging blob client: %w", err)
	}
	if _, err := blob.WithContext(ctx).SetRichMenuImage(richMenuID, contentType, image); err != nil {
		return fmt.Errorf("set rich menu image %s: %w", richMenuID, err)
	}

	return nil
}

func (a sdkAPI) SetDefaultRichMenu(ctx context.Context, richMenuID string) error {
	api, err := a.client(ctx)
	if err != nil {
		return err
	}
	if _, err := api.SetDefaultRichMenu(richMenuID); err != nil {
		return fmt.Errorf("set default rich menu %s: %w", richMenuID, err)
	}

	return nil
}
