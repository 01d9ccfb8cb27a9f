package scheduler

import (
	"context"
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/nimbletel/voicedesk/pkg/bridge/store"
)

// TwilioOriginator places outbound calls through the telephony
// provider. The answer webhook returns the stream markup with coaching
// mode and the user's identifier attached.
type TwilioOriginator struct {
	client    *twilio.RestClient
	from      string
	voiceURL  string
	statusURL string
}

func NewTwilioOriginator(accountSID, authToken, from, voiceURL, statusURL string) (*TwilioOriginator, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if from == "" {
		return nil, fmt.Errorf("twilio caller number is required")
	}
	if voiceURL == "" {
		return nil, fmt.Errorf("voice webhook url is required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioOriginator{
		client:    client,
		from:      from,
		voiceURL:  voiceURL,
		statusURL: statusURL,
	}, nil
}

func (t *TwilioOriginator) Originate(ctx context.Context, user store.User) (string, error) {
	answer := t.voiceURL + "?" + url.Values{
		"mode":   {"coaching"},
		"userId": {user.ID},
	}.Encode()

	params := &twilioapi.CreateCallParams{}
	params.SetTo(user.Phone)
	params.SetFrom(t.from)
	params.SetUrl(answer)
	if t.statusURL != "" {
		params.SetStatusCallback(t.statusURL)
		params.SetStatusCallbackEvent([]string{"completed", "busy", "no-answer", "failed", "canceled"})
	}

	call, err := t.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call to %s: %w", user.Phone, err)
	}
	if call.Sid == nil {
		return "", fmt.Errorf("create call to %s: no call sid returned", user.Phone)
	}
	return *call.Sid, nil
}
