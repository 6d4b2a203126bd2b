package activities

import "time"

type ProcessDocumentInput struct {
	DocumentID string `json:"document_id"`
}

func secondsToDuration(s int) time.Duration {
	if s < 0 {
		s = 0
	}
	return time.Duration(s) * time.Second
}
