package services

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image/color"
	"image/png"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"gorm.io/gorm"

	"github.com/schoolhub/backend/internal/platform/logger"
	"github.com/schoolhub/backend/internal/repos"
	"github.com/schoolhub/backend/internal/types"
)

const avatarSize = 256

// AvatarUploader is the slice of the bucket service the avatar renderer
// needs.
type AvatarUploader interface {
	UploadRaw(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

type AvatarService interface {
	CreateAndUploadUserAvatar(ctx context.Context, tx *gorm.DB, user *types.User) error
}

type avatarService struct {
	log      *logger.Logger
	userRepo repos.UserRepo
	uploader AvatarUploader
	face     font.Face
}

func NewAvatarService(baseLog *logger.Logger, userRepo repos.UserRepo, uploader AvatarUploader) (AvatarService, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse avatar font: %w", err)
	}
	face := truetype.NewFace(f, &truetype.Options{Size: avatarSize * 0.4})
	return &avatarService{
		log:      baseLog.With("service", "AvatarService"),
		userRepo: userRepo,
		uploader: uploader,
		face:     face,
	}, nil
}

// CreateAndUploadUserAvatar renders an initials disc for the user, uploads
// it, and fills in the avatar fields on the passed user record so the
// caller persists them with the rest of the row.
func (s *avatarService) CreateAndUploadUserAvatar(ctx context.Context, tx *gorm.DB, user *types.User) error {
	if s.uploader == nil {
		return fmt.Errorf("avatar uploader not configured")
	}

	initials := userInitials(user)
	bg := avatarBackground(user.Email)

	dc := gg.NewContext(avatarSize, avatarSize)
	dc.SetColor(bg)
	dc.DrawCircle(avatarSize/2, avatarSize/2, avatarSize/2)
	dc.Fill()
	dc.SetColor(color.White)
	dc.SetFontFace(s.face)
	dc.DrawStringAnchored(initials, avatarSize/2, avatarSize/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return fmt.Errorf("encode avatar: %w", err)
	}

	key := fmt.Sprintf("avatars/%s.png", user.ID)
	url, err := s.uploader.UploadRaw(ctx, key, "image/png", &buf)
	if err != nil {
		return fmt.Errorf("upload avatar: %w", err)
	}
	user.AvatarKey = key
	user.AvatarURL = url
	return nil
}

func userInitials(user *types.User) string {
	initials := firstRuneUpper(user.FirstName) + firstRuneUpper(user.LastName)
	if initials == "" {
		return "?"
	}
	return initials
}

// firstRuneUpper upper-cases the first rune of name. Names are UTF-8, so
// byte-slicing would mangle a multi-byte first letter.
func firstRuneUpper(name string) string {
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return ""
}

// avatarBackground picks a stable hue from the email so a user keeps the
// same color across regenerations.
func avatarBackground(email string) color.Color {
	palette := []color.RGBA{
		{R: 0x4f, G: 0x77, B: 0xc2, A: 0xff},
		{R: 0x6a, G: 0xa8, B: 0x4f, A: 0xff},
		{R: 0xc2, G: 0x6a, B: 0x4f, A: 0xff},
		{R: 0x8e, G: 0x5f, B: 0xb5, A: 0xff},
		{R: 0xc2, G: 0x9a, B: 0x3d, A: 0xff},
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return palette[int(h.Sum32())%len(palette)]
}
