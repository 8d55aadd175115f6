package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioChallenger delivers one-time verification codes over SMS. The
// service itself never inspects codes; it only hands back a challenge id
// the verification flow can correlate on.
type TwilioChallenger struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioChallenger(accountSID, authToken, fromNumber string) *TwilioChallenger {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioChallenger{client: client, fromNumber: fromNumber}
}

func (t *TwilioChallenger) SendChallenge(ctx context.Context, contact string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	params := &api.CreateMessageParams{}
	params.SetTo(contact)
	params.SetFrom(t.fromNumber)
	params.SetBody(fmt.Sprintf("Your dispatch verification code is: %s", code))

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return "", fmt.Errorf("send challenge: %w", err)
	}
	return uuid.NewString(), nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
