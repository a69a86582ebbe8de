// File path: internal/druid/event.go
package druid

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Event is the inbound webhook payload: the asset whose upload triggered the
// delivery, plus optional account metadata used for the success
// notification.
type Event struct {
	AssetName   string
	Email       string
	AccountName string
}

// ParseEvent decodes the webhook JSON body. A payload without a triggering
// asset name is rejected; the poller would have nothing to react to.
func ParseEvent(r io.Reader) (Event, error) {
	var payload struct {
		Assets []struct {
			AssetName string `json:"assetName"`
		} `json:"assets"`
		User struct {
			Email       string `json:"email"`
			AccountName string `json:"accountName"`
		} `json:"user"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Event{}, fmt.Errorf("druid: decode webhook payload: %w", err)
	}
	if len(payload.Assets) == 0 || strings.TrimSpace(payload.Assets[0].AssetName) == "" {
		return Event{}, fmt.Errorf("druid: webhook payload carries no asset name")
	}
	return Event{
		AssetName:   strings.TrimSpace(payload.Assets[0].AssetName),
		Email:       strings.TrimSpace(payload.User.Email),
		AccountName: strings.TrimSpace(payload.User.AccountName),
	}, nil
}
