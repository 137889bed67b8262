package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	richMenuWidth  = 2500
	richMenuHeight = 843

	// RichMenuSeatLookupData is the postback data of the seat lookup area.
	RichMenuSeatLookupData = "seat_lookup"
	// RichMenuWeddingPhotoData is the postback data of the wedding photo area.
	RichMenuWeddingPhotoData = "wedding_photo"
)

// RichMenuAPI is the slice of the Messaging API used to install a rich menu.
type RichMenuAPI interface {
	CreateRichMenu(ctx context.Context, request *messaging_api.RichMenuRequest) (string, error)
	SetRichMenuImage(ctx context.Context, richMenuID string, contentType string, image io.Reader) error
	SetDefaultRichMenu(ctx context.Context, richMenuID string) error
}

// WeddingRichMenu returns the two-area menu: seat lookup on the left half and
// wedding photos on the right.
func WeddingRichMenu() *messaging_api.RichMenuRequest {
	const half = richMenuWidth / 2

	return &messaging_api.RichMenuRequest{
		Size:        &messaging_api.RichMenuSize{Width: richMenuWidth, Height: richMenuHeight},
		Selected:    true,
		Name:        "Wedding Service Menu",
		ChatBarText: "選單 Menu",
		Areas: []messaging_api.RichMenuArea{
			{
				Bounds: &messaging_api.RichMenuBounds{X: 0, Y: 0, Width: half, Height: richMenuHeight},
				Action: postbackAction("座位查詢", RichMenuSeatLookupData, "座位查詢 Seat Lookup"),
			},
			{
				Bounds: &messaging_api.RichMenuBounds{X: half, Y: 0, Width: richMenuWidth - half, Height: richMenuHeight},
				Action: postbackAction("婚紗照", RichMenuWeddingPhotoData, "婚紗照 Wedding Photo"),
			},
		},
	}
}

// EnsureRichMenu creates the wedding rich menu, uploads the image at
// imagePath and makes the menu the channel default.
//
// A missing image skips setup and returns an empty id without error.
func EnsureRichMenu(ctx context.Context, api RichMenuAPI, imagePath string, logger *slog.Logger) (string, error) {
	if api == nil {
		return "", fmt.Errorf("ensure rich menu: nil api")
	}
	if logger == nil {
		logger = slog.Default()
	}

	image, err := os.Open(imagePath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("line rich menu image missing, skipping setup", "image", imagePath)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ensure rich menu: open image: %w", err)
	}
	defer image.Close()

	richMenuID, err := api.CreateRichMenu(ctx, WeddingRichMenu())
	if err != nil {
		return "", fmt.Errorf("ensure rich menu: %w", err)
	}
	if richMenuID == "" {
		return "", fmt.Errorf("ensure rich menu: empty rich menu id")
	}
	if err := api.SetRichMenuImage(ctx, richMenuID, imageContentType(imagePath), image); err != nil {
		return "", fmt.Errorf("ensure rich menu: %w", err)
	}
	if err := api.SetDefaultRichMenu(ctx, richMenuID); err != nil {
		return "", fmt.Errorf("ensure rich menu: %w", err)
	}

	return richMenuID, nil
}

func imageContentType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}

	return "image/jpeg"
}
