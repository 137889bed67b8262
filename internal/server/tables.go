package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/nfnt/resize"
)

type tableList struct {
	Tables []int `json:"tables"`
	Count  int   `json:"count"`
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	tables, err := s.cfg.Tables.List()
	if err != nil {
		s.logger.Error("list table images failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "服務器錯誤"})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    tableList{Tables: tables, Count: len(tables)},
	})
}

func (s *Server) handleTableImage(w http.ResponseWriter, r *http.Request) {
	table, err := strconv.Atoi(r.PathValue("table"))
	if err != nil || table < 1 || (s.cfg.MaxTable > 0 && table > s.cfg.MaxTable) {
		writeJSON(w, http.StatusBadRequest, apiResponse{Message: s.invalidTableMessage()})
		return
	}

	path := s.cfg.Tables.Path(strconv.Itoa(table))
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		writeJSON(w, http.StatusNotFound, apiResponse{Message: fmt.Sprintf("桌次 %d 的圖片不存在", table)})
		return
	}
	if err != nil {
		s.logger.Error("stat table image failed", "table", table, "error", err)
		writeJSON(w, http.StatusInternalServerError, apiResponse{Message: "服務器錯誤"})
		return
	}

	if info.Size() <= s.cfg.MaxImageBytes {
		http.ServeFile(w, r, path)
		return
	}

	resized, err := downsizePNG(path, s.cfg.ResizeWidth)
	if err != nil {
		s.logger.Warn("table image resize failed, serving original", "table", table, "error", err)
		http.ServeFile(w, r, path)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(resized)))
	_, _ = w.Write(resized)
}

func (s *Server) invalidTableMessage() string {
	if s.cfg.MaxTable > 0 {
		return fmt.Sprintf("無效的桌次號碼，必須是1-%d之間的數字", s.cfg.MaxTable)
	}

	return "無效的桌次號碼"
}

// downsizePNG re-encodes the image at path as PNG no wider than maxWidth.
// Narrower images keep their size.
func downsizePNG(path string, maxWidth uint) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buffer bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buffer, img); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	return buffer.Bytes(), nil
}
