package utils

import (
	"strings"
)

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

// SplitMessageIDs splits a References / In-Reply-To header into normalized ids.
func SplitMessageIDs(header string) []string {
	fields := strings.Fields(strings.ReplaceAll(header, ",", " "))
	ids := make([]string, 0, len(fields))
	for _, field := range fields {
		if id := NormalizeMessageID(field); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
