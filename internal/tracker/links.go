package tracker

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// RemoteLink is a web link attached to an issue
type RemoteLink struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	IconURL string `json:"icon_url,omitempty"`
}

type remoteLinkObject struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Icon  *struct {
		URL16x16 string `json:"url16x16,omitempty"`
		Title    string `json:"title,omitempty"`
	} `json:"icon,omitempty"`
}

// RemoteLinks lists the web links attached to an issue
func (c *Client) RemoteLinks(ctx context.Context, key string) ([]RemoteLink, error) {
	var resp []struct {
		ID     int              `json:"id"`
		Object remoteLinkObject `json:"object"`
	}
	if err := c.api.Do(ctx, http.MethodGet, issuePath(key)+"/remotelink", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list remote links %s: %w", key, err)
	}

	links := make([]RemoteLink, 0, len(resp))
	for _, r := range resp {
		link := RemoteLink{ID: r.ID, URL: r.Object.URL, Title: r.Object.Title}
		if r.Object.Icon != nil {
			link.IconURL = r.Object.Icon.URL16x16
		}
		links = append(links, link)
	}
	return links, nil
}

// AddRemoteLink attaches a web link to an issue
func (c *Client) AddRemoteLink(ctx context.Context, key string, link RemoteLink) error {
	object := map[string]any{
		"url":   link.URL,
		"title": link.Title,
	}
	if link.IconURL != "" {
		object["icon"] = map[string]string{"url16x16": link.IconURL, "title": "Testmo"}
	}
	if err := c.api.Do(ctx, http.MethodPost, issuePath(key)+"/remotelink", nil, map[string]any{"object": object}, nil); err != nil {
		return fmt.Errorf("add remote link %s: %w", key, err)
	}
	return nil
}

// DeleteRemoteLink removes one web link from an issue
func (c *Client) DeleteRemoteLink(ctx context.Context, key string, id int) error {
	path := issuePath(key) + "/remotelink/" + strconv.Itoa(id)
	if err := c.api.Do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete remote link %s/%d: %w", key, id, err)
	}
	return nil
}
