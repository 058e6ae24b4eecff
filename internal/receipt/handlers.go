package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
)

// maxUploadSize covers high-resolution phone photos
const maxUploadSize = int64(50 << 20)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemIndex):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidItem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// contentTypeFor guesses a MIME type from the file extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListReceipts returns the user's receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request, userID string) {
	receipts, err := s.service.ListReceipts(userID)
	if err != nil {
		slog.Error("Error listing receipts", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		msg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			msg = "No file was selected. Please choose a file to upload."
		}
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	receipt, err := s.service.ProcessReceipt(r.Context(), userID, header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	receipt, err := s.service.GetReceipt(userID, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile returns the file for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request, userID string) {
	data, contentType, err := s.service.GetReceiptFile(userID, r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.service.DeleteReceipt(r.Context(), userID, r.PathValue("id")); err != nil {
		slog.Error("Error deleting receipt", "error", err)
		writeError(w, statusFor(err), "Error deleting receipt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// itemIndex reads the {index} path value
func itemIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// handleUpdateItem applies an inline edit to a receipt line
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, userID string) {
	index, ok := itemIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid item index")
		return
	}

	var update ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := s.service.UpdateItem(r.Context(), userID, r.PathValue("id"), index, update)
	if err != nil {
		slog.Error("Error updating item", "receipt_id", r.PathValue("id"), "index", index, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleDeleteItem removes a receipt line
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, userID string) {
	index, ok := itemIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid item index")
		return
	}

	receipt, err := s.service.DeleteItem(r.Context(), userID, r.PathValue("id"), index)
	if err != nil {
		slog.Error("Error deleting item", "receipt_id", r.PathValue("id"), "index", index, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetLedger returns the user's whole ledger
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request, userID string) {
	l, err := s.service.Ledger(r.Context(), userID)
	if err != nil {
		slog.Error("Error getting ledger", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleGetYear returns one year of the ledger
func (s *Server) handleGetYear(w http.ResponseWriter, r *http.Request, userID string) {
	l, err := s.service.Ledger(r.Context(), userID)
	if err != nil {
		slog.Error("Error getting ledger", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	year, ok := l.Year(r.PathValue("year"))
	if !ok {
		writeError(w, http.StatusNotFound, "No spending recorded for this year")
		return
	}
	writeJSON(w, http.StatusOK, year)
}

// handleGetMonth returns one month of the ledger
func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request, userID string) {
	yearNum, err := strconv.Atoi(r.PathValue("year"))
	month, ok := ledger.ParseMonth(r.PathValue("month"))
	if err != nil || !ok {
		writeError(w, http.StatusBadRequest, "Invalid year or month")
		return
	}

	l, err := s.service.Ledger(r.Context(), userID)
	if err != nil {
		slog.Error("Error getting ledger", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	m, ok := l.Month(ledger.Period{Year: yearNum, Month: month})
	if !ok {
		writeError(w, http.StatusNotFound, "No spending recorded for this month")
		return
	}
	writeJSON(w, http.StatusOK, m)
}
