package repository

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrCollectionExists     = errors.New("collection already exists")
	ErrFileNotFound         = errors.New("file not found")
	ErrSettingNotFound      = errors.New("setting not found")
	ErrTelegramLinkNotFound = errors.New("telegram link not found")

	// ErrNoGlobalDefault is returned when no collection is currently marked
	// as the global default.
	ErrNoGlobalDefault = errors.New("no global default collection")
)
