package http

import (
	"encoding/json"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeMessage answers with a bare JSON string.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, msg)
}

// writeReply answers with {"message": ...} and the reply's status.
func writeReply(w http.ResponseWriter, reply services.Reply) {
	writeJSON(w, reply.Code, reply)
}

func writeInternalError(w http.ResponseWriter) {
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

// sendFile answers with d as an attachment.
func sendFile(w http.ResponseWriter, d *services.Download) {
	w.Header().Set("Content-Type", contentTypeOf(d.Filename))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

func contentTypeOf(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".zip":
		return "application/zip"
	case ".fasta", ".gbk":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
