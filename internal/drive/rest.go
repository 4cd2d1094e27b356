package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTClient implements Client against a drive API speaking the plain JSON
// protocol below. It maps HTTP status codes onto the error taxonomy so the
// Retrying decorator and the merge executor can classify failures without
// knowing about HTTP.
//
//	GET    {base}/folders/{id}/children?pageToken=...
//	GET    {base}/items/{id}
//	PATCH  {base}/items/{id}            {"name": ..., "description": ...}
//	POST   {base}/items/{id}/move       {"parentId": ...}
//	POST   {base}/items/{id}/trash
//	POST   {base}/items/{id}/untrash
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient constructs a RESTClient. token may be empty for
// unauthenticated endpoints.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{},
	}
}

type restItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
	MimeType string `json:"mimeType"`
}

type restChildPage struct {
	Items         []restItem `json:"items"`
	NextPageToken string     `json:"nextPageToken"`
}

type restMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ParentIDs    []string  `json:"parentIds"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Description  string    `json:"description"`
	Trashed      bool      `json:"trashed"`
}

func (c *RESTClient) ListChildren(ctx context.Context, folderID, pageToken string) (ChildPage, error) {
	endpoint := fmt.Sprintf("%s/folders/%s/children", c.baseURL, url.PathEscape(folderID))
	if pageToken != "" {
		endpoint += "?pageToken=" + url.QueryEscape(pageToken)
	}

	var page restChildPage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &page, "list_children", folderID); err != nil {
		return ChildPage{}, err
	}

	out := ChildPage{NextPageToken: page.NextPageToken, Items: make([]Item, 0, len(page.Items))}
	for _, item := range page.Items {
		out.Items = append(out.Items, Item{
			ID:       item.ID,
			Name:     item.Name,
			ParentID: item.ParentID,
			MimeType: item.MimeType,
		})
	}
	return out, nil
}

func (c *RESTClient) MoveItem(ctx context.Context, itemID, newParentID string) error {
	endpoint := fmt.Sprintf("%s/items/%s/move", c.baseURL, url.PathEscape(itemID))
	body := map[string]string{"parentId": newParentID}
	return c.do(ctx, http.MethodPost, endpoint, body, nil, "move_item", itemID)
}

func (c *RESTClient) TrashItem(ctx context.Context, itemID string) error {
	endpoint := fmt.Sprintf("%s/items/%s/trash", c.baseURL, url.PathEscape(itemID))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil, "trash_item", itemID)
}

func (c *RESTClient) UntrashItem(ctx context.Context, itemID string) error {
	endpoint := fmt.Sprintf("%s/items/%s/untrash", c.baseURL, url.PathEscape(itemID))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil, "untrash_item", itemID)
}

func (c *RESTClient) GetMetadata(ctx context.Context, itemID string) (Metadata, error) {
	endpoint := fmt.Sprintf("%s/items/%s", c.baseURL, url.PathEscape(itemID))

	var meta restMetadata
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &meta, "get_metadata", itemID); err != nil {
		return Metadata{}, err
	}
	return Metadata{
		ID:           meta.ID,
		Name:         meta.Name,
		ParentIDs:    meta.ParentIDs,
		MimeType:     meta.MimeType,
		Size:         meta.Size,
		ModifiedTime: meta.ModifiedTime,
		Description:  meta.Description,
		Trashed:      meta.Trashed,
	}, nil
}

func (c *RESTClient) UpdateMetadata(ctx context.Context, itemID string, patch MetadataPatch) error {
	endpoint := fmt.Sprintf("%s/items/%s", c.baseURL, url.PathEscape(itemID))
	body := map[string]string{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	return c.do(ctx, http.MethodPatch, endpoint, body, nil, "update_metadata", itemID)
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, body, out any, operation, itemID string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Wrap(ErrStructural, "rest", operation, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Wrap(ErrStructural, "rest", operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return Wrap(ErrTransient, "rest", operation, itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp, operation, itemID)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return Wrap(ErrStructural, "rest", operation, "decode response", err)
		}
	}
	return nil
}

func (c *RESTClient) statusError(resp *http.Response, operation, itemID string) error {
	detail := fmt.Sprintf("%s: status %d", itemID, resp.StatusCode)
	if snippet := readSnippet(resp.Body); snippet != "" {
		detail += ": " + snippet
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Wrap(ErrNotFound, "rest", operation, detail, nil)
	case resp.StatusCode == http.StatusConflict:
		return Wrap(ErrConflict, "rest", operation, detail, nil)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return Wrap(ErrCapacity, "rest", operation, detail, nil)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return Wrap(ErrTransient, "rest", operation, detail, nil)
	default:
		return Wrap(ErrStructural, "rest", operation, detail, nil)
	}
}

func readSnippet(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 256))
	if err != nil || len(data) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(data))
}
