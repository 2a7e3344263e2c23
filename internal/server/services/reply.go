// Package services contains the server-side business logic: settings
// versions, the weekly quota and slot allocation, sample submission, user
// accounts and result ingestion.
//
// Outcomes that the user should see are returned as a Reply. Only
// unexpected failures are returned as errors.
package services

import "net/http"

// Reply is a user-facing message with the status code the API answers with.
type Reply struct {
	Message string `json:"message"`
	Code    int    `json:"-"`
}

func (r Reply) OK() bool { return r.Code == http.StatusOK }

func okReply(msg string) Reply { return Reply{Message: msg, Code: http.StatusOK} }

func rejectReply(msg string) Reply { return Reply{Message: msg, Code: http.StatusUnauthorized} }
