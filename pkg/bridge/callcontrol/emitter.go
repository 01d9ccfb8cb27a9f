// Package callcontrol renders the call-control markup handed back to
// the telephony provider when a call arrives. The document optionally
// tries a human first, greets, then opens the media stream back to us.
package callcontrol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/twilio/twilio-go/twiml"
)

type Options struct {
	// StreamURL is the wss:// endpoint the provider connects back to.
	StreamURL string

	Mode    string
	From    string
	To      string
	CallSID string
	UserID  string

	// Greeting is spoken before the stream opens; empty skips the verb.
	Greeting string

	// ForwardNumber, when set, is rung first for DialTimeout before the
	// AI takes the call.
	ForwardNumber string
	DialTimeout   time.Duration
}

// Render produces the markup document for one inbound call.
func Render(opts Options) (string, error) {
	if strings.TrimSpace(opts.StreamURL) == "" {
		return "", fmt.Errorf("stream url is required")
	}

	var verbs []twiml.Element

	if strings.TrimSpace(opts.ForwardNumber) != "" {
		timeout := int(opts.DialTimeout / time.Second)
		if timeout <= 0 {
			timeout = 15
		}
		verbs = append(verbs, &twiml.VoiceDial{
			Number:  opts.ForwardNumber,
			Timeout: strconv.Itoa(timeout),
		})
	}

	if strings.TrimSpace(opts.Greeting) != "" {
		verbs = append(verbs, &twiml.VoiceSay{Message: opts.Greeting})
	}

	params := []twiml.Element{
		&twiml.VoiceParameter{Name: "mode", Value: modeOrDefault(opts.Mode)},
		&twiml.VoiceParameter{Name: "from", Value: opts.From},
		&twiml.VoiceParameter{Name: "to", Value: opts.To},
		&twiml.VoiceParameter{Name: "callSid", Value: opts.CallSID},
	}
	if strings.TrimSpace(opts.UserID) != "" {
		params = append(params, &twiml.VoiceParameter{Name: "userId", Value: opts.UserID})
	}

	verbs = append(verbs, &twiml.VoiceConnect{
		InnerElements: []twiml.Element{
			&twiml.VoiceStream{
				Url:           opts.StreamURL,
				InnerElements: params,
			},
		},
	})

	return twiml.Voice(verbs)
}

func modeOrDefault(mode string) string {
	if strings.TrimSpace(mode) == "" {
		return "receptionist"
	}
	return mode
}
