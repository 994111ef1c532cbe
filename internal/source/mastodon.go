package source

import (
	"context"
	"net/url"
	"strconv"

	"github.com/praevisio/vigilance/internal/domain/entity"
)

const DefaultMastodonURL = "https://mastodon.social/api/v1/trends/tags"

type mastodonTag struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	History []struct {
		Day      string `json:"day"`
		Uses     string `json:"uses"`
		Accounts string `json:"accounts"`
	} `json:"history"`
}

// Mastodon reads trending hashtags of a public instance.
type Mastodon struct {
	client HTTPClient
	url    string
	limit  int
}

func NewMastodon(client HTTPClient, trendsURL string, limit int) Mastodon {
	if trendsURL == "" {
		trendsURL = DefaultMastodonURL
	}

	return Mastodon{
		client: client,
		url:    trendsURL,
		limit:  limit,
	}
}

func (m Mastodon) Domain() entity.Domain {
	return entity.DomainSocial
}

func (m Mastodon) Fetch(ctx context.Context) (any, error) {
	return m.FetchTrends(ctx)
}

func (m Mastodon) Fallback(context.Context) any {
	return []entity.SocialTrend{
		{Tag: "earthquake", Uses: 120, Accounts: 87},
		{Tag: "climate", Uses: 95, Accounts: 70},
		{Tag: "foodprices", Uses: 40, Accounts: 31},
	}
}

func (m Mastodon) FetchTrends(ctx context.Context) ([]entity.SocialTrend, error) {
	endpoint := m.url
	if m.limit > 0 {
		endpoint += "?" + url.Values{"limit": {strconv.Itoa(m.limit)}}.Encode()
	}

	tags := []mastodonTag{}

	err := getJSON(ctx, m.client, endpoint, &tags)
	if err != nil {
		return nil, err
	}

	ret := make([]entity.SocialTrend, 0, len(tags))

	for _, tag := range tags {
		trend := entity.SocialTrend{
			Tag: tag.Name,
			URL: tag.URL,
		}

		// history[0] is the current day
		if len(tag.History) > 0 {
			trend.Uses, _ = strconv.Atoi(tag.History[0].Uses)
			trend.Accounts, _ = strconv.Atoi(tag.History[0].Accounts)
		}

		ret = append(ret, trend)
	}

	return ret, nil
}
