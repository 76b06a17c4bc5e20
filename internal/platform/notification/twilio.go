package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

var ErrInvalidPhone = errors.New("invalid phone number")

const nationalNumberLen = 10

// FormatPhone normalises a national mobile number into E.164 using
// countryCode (for example "+91"). A number that already carries the
// country prefix is accepted as well.
func FormatPhone(countryCode, raw string) (string, error) {
	cc := digitsOnly(countryCode)
	digits := digitsOnly(raw)
	if len(digits) == len(cc)+nationalNumberLen && strings.HasPrefix(digits, cc) {
		digits = digits[len(cc):]
	}
	if cc == "" || len(digits) != nationalNumberLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return "+" + cc + digits, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client      *twilio.RestClient
	from        string
	countryCode string
}

func NewTwilioSender(accountSID, authToken, from, countryCode string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from, countryCode: countryCode}
}

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	phone, err := FormatPhone(s.countryCode, to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(s.from)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio create message: %w", err)
	}
	return nil
}
