package app

import (
	"context"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog/log"
)

const (
	tokenIssuer     = "huddle"
	roomClaim       = "roomId"
	DefaultTokenTTL = time.Hour
)

// AccessController issues and verifies stateless HS256 room tokens.
// There is no revocation list; a token lives until its exp claim.
type AccessController struct {
	rooms *RoomService
	key   []byte
	ttl   time.Duration
	now   func() time.Time
}

func NewAccessController(rooms *RoomService, secret []byte, ttl time.Duration) *AccessController {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AccessController{rooms: rooms, key: secret, ttl: ttl, now: rooms.Now}
}

// Authenticate checks the password and returns a token bound to the room.
// Password-less rooms get a token for any password.
func (a *AccessController) Authenticate(ctx context.Context, rawID, password string) (string, error) {
	room, err := a.rooms.Get(ctx, rawID)
	if err != nil {
		return "", err
	}
	if err := a.rooms.CheckPassword(room, password); err != nil {
		log.Info().Str("module", "app.access").Str("room", rawID).Msg("wrong password")
		return "", err
	}
	return a.Issue(room.ID)
}

func (a *AccessController) Issue(id domain.RoomID) (string, error) {
	now := a.now()
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(string(id)).
		IssuedAt(now).
		Expiration(now.Add(a.ttl)).
		Claim(roomClaim, string(id)).
		Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, a.key))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// Verify checks signature, then expiry against the controller clock, then the room binding.
func (a *AccessController) Verify(raw string, id domain.RoomID) error {
	if raw == "" {
		return domain.ErrInvalidToken
	}
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, a.key), jwt.WithValidate(false))
	if err != nil {
		return domain.ErrInvalidToken
	}
	if tok.Issuer() != tokenIssuer {
		return domain.ErrInvalidToken
	}
	exp := tok.Expiration()
	if exp.IsZero() {
		return domain.ErrInvalidToken
	}
	if !a.now().Before(exp) {
		return domain.ErrTokenExpired
	}
	v, ok := tok.Get(roomClaim)
	if !ok {
		return domain.ErrInvalidToken
	}
	if s, _ := v.(string); domain.RoomID(s) != id {
		return domain.ErrRoomMismatch
	}
	return nil
}
