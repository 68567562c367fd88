package economy

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Quote is a priced, not-yet-committed buy. Nothing is reserved while a quote
// is outstanding; the settle path re-validates everything from storage.
type Quote struct {
	ID        string    `json:"id"`
	CountryID int64     `json:"country_id"`
	BuyerID   int64     `json:"buyer_id"`
	ListingID int64     `json:"listing_id"`
	SellerID  int64     `json:"seller_id"`
	ItemID    string    `json:"item_id"`
	Qty       int64     `json:"qty"`
	UnitPrice int64     `json:"unit_price"`
	Gross     int64     `json:"gross"`
	Fee       int64     `json:"fee"`
	Net       int64     `json:"net"`
	ExpiresAt time.Time `json:"expires_at"`
}

type quoteClaims struct {
	CountryID int64  `json:"cid"`
	ListingID int64  `json:"lst"`
	SellerID  int64  `json:"slr"`
	ItemID    string `json:"itm"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"upx"`
	Fee       int64  `json:"fee"`
	jwt.RegisteredClaims
}

// QuoteSigner mints and verifies the short-lived tokens that carry a quote
// between the quote call and the settle call. Tokens are self-contained so
// any service instance can settle a quote minted by another; no pending-quote
// state is held server-side.
type QuoteSigner struct {
	key []byte
	ttl time.Duration
}

func NewQuoteSigner(key string, ttl time.Duration) QuoteSigner {
	return QuoteSigner{key: []byte(key), ttl: ttl}
}

func (s QuoteSigner) TTL() time.Duration { return s.ttl }

// Sign stamps the quote with an id and expiry and returns the signed token.
func (s QuoteSigner) Sign(q Quote, now time.Time) (Quote, string, error) {
	q.ID = uuid.NewString()
	q.ExpiresAt = now.Add(s.ttl)
	claims := quoteClaims{
		CountryID: q.CountryID,
		ListingID: q.ListingID,
		SellerID:  q.SellerID,
		ItemID:    q.ItemID,
		Qty:       q.Qty,
		UnitPrice: q.UnitPrice,
		Fee:       q.Fee,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        q.ID,
			Subject:   strconv.FormatInt(q.BuyerID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(q.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Quote{}, "", fmt.Errorf("sign quote: %w", err)
	}
	return q, token, nil
}

// Parse verifies a quote token. Expired tokens map to ErrQuoteExpired, every
// other defect to ErrQuoteInvalid.
func (s QuoteSigner) Parse(token string) (Quote, error) {
	var claims quoteClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Quote{}, ErrQuoteExpired
		}
		return Quote{}, fmt.Errorf("%w: %v", ErrQuoteInvalid, err)
	}
	if !parsed.Valid {
		return Quote{}, ErrQuoteInvalid
	}
	buyerID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Quote{}, ErrQuoteInvalid
	}
	gross := claims.UnitPrice * claims.Qty
	q := Quote{
		ID:        claims.ID,
		CountryID: claims.CountryID,
		BuyerID:   buyerID,
		ListingID: claims.ListingID,
		SellerID:  claims.SellerID,
		ItemID:    claims.ItemID,
		Qty:       claims.Qty,
		UnitPrice: claims.UnitPrice,
		Gross:     gross,
		Fee:       claims.Fee,
		Net:       gross - claims.Fee,
	}
	if claims.ExpiresAt != nil {
		q.ExpiresAt = claims.ExpiresAt.Time
	}
	return q, nil
}
