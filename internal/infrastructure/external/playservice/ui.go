package playservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bivex/iab-client/internal/billing/launch"
)

type confirmationRequest struct {
	LaunchToken string `json:"launchToken"`
	RequestCode int    `json:"requestCode"`
	CallbackURL string `json:"callbackUrl"`
}

// ConfirmationUI asks the daemon to show the confirmation screen. The
// daemon posts the outcome to CallbackURL.
type ConfirmationUI struct {
	client      *Client
	callbackURL string
}

// NewConfirmationUI creates a UI host reporting results to callbackURL
func NewConfirmationUI(client *Client, callbackURL string) *ConfirmationUI {
	return &ConfirmationUI{client: client, callbackURL: callbackURL}
}

// StartConfirmationFlow implements launch.UIHost. A 409 from the daemon
// means no screen is available to host the flow.
func (u *ConfirmationUI) StartConfirmationFlow(launchToken any, requestCode int) error {
	token, ok := launchToken.(string)
	if !ok {
		return fmt.Errorf("unsupported launch token type %T", launchToken)
	}

	_, err := u.client.post(context.Background(), pathConfirmations, confirmationRequest{
		LaunchToken: token,
		RequestCode: requestCode,
		CallbackURL: u.callbackURL,
	})
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusConflict {
		return launch.ErrNoUIContext
	}
	return err
}
