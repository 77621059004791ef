package discord

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// maxBannerBytes caps the downloaded image size. Discord rejects guild
// banners above 10 MB anyway.
const maxBannerBytes = 10 << 20

// GuildBannerSetter applies images as the guild banner. It downloads the
// image and submits it to the guild edit endpoint as a base64 data URI.
// It implements the announcer's BannerSetter.
type GuildBannerSetter struct {
	s       *discordgo.Session
	guildID string
	client  *http.Client
}

// NewGuildBannerSetter creates a GuildBannerSetter for guildID.
func NewGuildBannerSetter(s *discordgo.Session, guildID string) *GuildBannerSetter {
	return &GuildBannerSetter{
		s:       s,
		guildID: guildID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBanner downloads imageURL and applies it as the guild banner.
func (g *GuildBannerSetter) SetBanner(ctx context.Context, imageURL string) error {
	data, contentType, err := fetchImage(ctx, g.client, imageURL)
	if err != nil {
		return fmt.Errorf("discord: fetch banner image: %w", err)
	}

	_, err = g.s.GuildEdit(g.guildID, &discordgo.GuildParams{
		Banner: encodeImageDataURI(contentType, data),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: set guild banner: %w", err)
	}
	return nil
}

// BannerURL returns the permanent CDN URL of the currently applied guild
// banner, or an error when the guild has none. Attachment URLs given to
// SetBanner are temporary; callers persist this URL instead.
func (g *GuildBannerSetter) BannerURL(ctx context.Context) (string, error) {
	guild, err := g.s.Guild(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: fetch guild: %w", err)
	}
	url := guild.BannerURL("480")
	if url == "" {
		return "", fmt.Errorf("discord: guild %s has no banner", g.guildID)
	}
	return url, nil
}

// fetchImage downloads the image at url and returns its bytes and content
// type. Non-image content types are rejected.
func fetchImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBannerBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxBannerBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxBannerBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("content type %q is not an image", contentType)
	}
	return data, contentType, nil
}

// encodeImageDataURI renders image bytes as the data URI form the guild edit
// endpoint expects.
func encodeImageDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
