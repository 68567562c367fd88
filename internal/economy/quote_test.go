package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testQuote() Quote {
	return Quote{
		CountryID: 42,
		BuyerID:   7,
		ListingID: 9001,
		SellerID:  3,
		ItemID:    "iron",
		Qty:       10,
		UnitPrice: 20,
		Gross:     200,
		Fee:       10,
		Net:       190,
	}
}

func TestQuoteSignParseRoundtrip(t *testing.T) {
	signer := NewQuoteSigner("test-secret", 30*time.Second)
	now := time.Now()

	stamped, token, err := signer.Sign(testQuote(), now)
	require.NoError(t, err)
	require.NotEmpty(t, stamped.ID)
	require.WithinDuration(t, now.Add(30*time.Second), stamped.ExpiresAt, time.Second)

	parsed, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, stamped.ID, parsed.ID)
	require.Equal(t, int64(42), parsed.CountryID)
	require.Equal(t, int64(7), parsed.BuyerID)
	require.Equal(t, int64(9001), parsed.ListingID)
	require.Equal(t, int64(3), parsed.SellerID)
	require.Equal(t, "iron", parsed.ItemID)

	// Gross and net are derived from the claims, never trusted from the caller.
	require.Equal(t, int64(200), parsed.Gross)
	require.Equal(t, int64(10), parsed.Fee)
	require.Equal(t, int64(190), parsed.Net)
	require.Equal(t, parsed.Gross, parsed.Fee+parsed.Net)
}

func TestQuoteParseExpired(t *testing.T) {
	signer := NewQuoteSigner("test-secret", 30*time.Second)
	_, token, err := signer.Sign(testQuote(), time.Now().Add(-2*time.Minute))
	require.NoError(t, err)

	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrQuoteExpired)
	require.ErrorIs(t, err, ErrExpired)
}

func TestQuoteParseWrongKey(t *testing.T) {
	signer := NewQuoteSigner("test-secret", 30*time.Second)
	_, token, err := signer.Sign(testQuote(), time.Now())
	require.NoError(t, err)

	other := NewQuoteSigner("another-secret", 30*time.Second)
	_, err = other.Parse(token)
	require.ErrorIs(t, err, ErrQuoteInvalid)
}

func TestQuoteParseTampered(t *testing.T) {
	signer := NewQuoteSigner("test-secret", 30*time.Second)
	_, token, err := signer.Sign(testQuote(), time.Now())
	require.NoError(t, err)

	_, err = signer.Parse(token + "x")
	require.ErrorIs(t, err, ErrQuoteInvalid)
}

func TestCancelQuoteOwnership(t *testing.T) {
	signer := NewQuoteSigner("test-secret", time.Minute)
	svc := NewService(nil, nil, signer)
	_, token, err := signer.Sign(testQuote(), time.Now())
	require.NoError(t, err)

	q, err := svc.CancelQuote(42, 7, token)
	require.NoError(t, err)
	require.Equal(t, int64(9001), q.ListingID)

	_, err = svc.CancelQuote(42, 8, token)
	require.ErrorIs(t, err, ErrNotQuoteBuyer)

	_, err = svc.CancelQuote(41, 7, token)
	require.ErrorIs(t, err, ErrQuoteInvalid)
}

func TestQuoteParseGarbage(t *testing.T) {
	signer := NewQuoteSigner("test-secret", 30*time.Second)
	_, err := signer.Parse("not.a.token")
	require.ErrorIs(t, err, ErrQuoteInvalid)
}
