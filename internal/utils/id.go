package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const trackingIdAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateTrackingID returns a 21-character url-safe identifier.
func GenerateTrackingID() string {
	id, err := gonanoid.Generate(trackingIdAlphabet, 21)
	if err != nil {
		panic(err)
	}
	return id
}

func GenerateNanoIDWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(trackingIdAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
