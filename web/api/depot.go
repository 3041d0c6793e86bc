package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/narvanalabs/builder-web/internal/state"
)

// OriginRequest is the body of origin create and update calls.
type OriginRequest struct {
	Name                     string                  `json:"name,omitempty"`
	DefaultPackageVisibility state.PackageVisibility `json:"default_package_visibility,omitempty"`
}

// Channel is a promotion target within an origin.
type Channel struct {
	Name      string `json:"name"`
	Origin    string `json:"origin,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PackageList is a ranged listing of package idents.
type PackageList struct {
	RangeStart int                  `json:"range_start"`
	RangeEnd   int                  `json:"range_end"`
	TotalCount int                  `json:"total_count"`
	Data       []state.PackageIdent `json:"data"`
}

// Download is a fetched package artifact.
type Download struct {
	Filename string
	Body     []byte
}

// CreateOrigin creates an origin owned by the token's owner (POST /depot/origins).
func (c *Client) CreateOrigin(ctx context.Context, token string, o OriginRequest) (*state.Origin, error) {
	body, err := jsonBody(o)
	if err != nil {
		return nil, err
	}
	var origin state.Origin
	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/depot/origins",
		token:       token,
		body:        body,
		contentType: "application/json",
		accept:      []int{http.StatusCreated},
	}, &origin)
	if err != nil {
		return nil, err
	}
	return &origin, nil
}

// UpdateOrigin changes origin settings (PUT /depot/origins/:name).
func (c *Client) UpdateOrigin(ctx context.Context, token, name string, o OriginRequest) error {
	body, err := jsonBody(o)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/depot/origins" + pathEscape(name),
		token:       token,
		body:        body,
		contentType: "application/json",
		accept:      []int{http.StatusNoContent},
	}, nil)
	return err
}

// GetOrigin fetches a single origin.
func (c *Client) GetOrigin(ctx context.Context, name string) (*state.Origin, error) {
	var origin state.Origin
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/depot/origins" + pathEscape(name)}, &origin)
	if err != nil {
		return nil, err
	}
	return &origin, nil
}

// ListOriginPublicKeys lists the public key revisions of an origin.
func (c *Client) ListOriginPublicKeys(ctx context.Context, token, origin string) ([]state.OriginKey, error) {
	var keys []state.OriginKey
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/origins" + pathEscape(origin, "keys"),
		token:  token,
	}, &keys)
	return keys, err
}

// KeyKind selects the public or secret half of an origin key pair.
type KeyKind string

const (
	PublicKey KeyKind = "keys"
	SecretKey KeyKind = "secret_keys"
)

// UploadOriginKey uploads a key revision (POST /depot/origins/:origin/{keys,secret_keys}/:revision).
func (c *Client) UploadOriginKey(ctx context.Context, token string, kind KeyKind, origin, revision, key string) error {
	_, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/depot/origins" + pathEscape(origin, string(kind), revision),
		token:       token,
		body:        strings.NewReader(key),
		contentType: "text/plain",
		accept:      []int{http.StatusCreated},
	}, nil)
	return err
}

// GetOriginKey fetches the raw text of a key revision. Use "latest" as the
// revision for the newest secret key.
func (c *Client) GetOriginKey(ctx context.Context, token string, kind KeyKind, origin, revision string) (string, error) {
	var key string
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/origins" + pathEscape(origin, string(kind), revision),
		token:  token,
	}, &key)
	return key, err
}

// CreateChannel creates a channel in an origin (POST /depot/channels/:origin/:channel).
func (c *Client) CreateChannel(ctx context.Context, token, origin, channel string) (*Channel, error) {
	var ch Channel
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/depot/channels" + pathEscape(origin, channel),
		token:  token,
		accept: []int{http.StatusCreated},
	}, &ch)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListChannelPackages lists the packages in a channel starting at rangeStart.
func (c *Client) ListChannelPackages(ctx context.Context, token, origin, channel string, rangeStart int) (*PackageList, error) {
	var list PackageList
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/channels" + pathEscape(origin, channel, "pkgs"),
		token:  token,
		query:  rangeQuery(rangeStart),
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// PromotePackage adds a release to a channel.
func (c *Client) PromotePackage(ctx context.Context, token, channel string, ident state.PackageIdent) error {
	return c.channelMove(ctx, token, channel, ident, "promote")
}

// DemotePackage removes a release from a channel. The server always refuses
// to demote from unstable.
func (c *Client) DemotePackage(ctx context.Context, token, channel string, ident state.PackageIdent) error {
	return c.channelMove(ctx, token, channel, ident, "demote")
}

func (c *Client) channelMove(ctx context.Context, token, channel string, ident state.PackageIdent, verb string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/depot/channels" + pathEscape(ident.Origin, channel, "pkgs", ident.Name, ident.Version, ident.Release, verb),
		token:  token,
	}, nil)
	return err
}

// UploadPackage uploads a package artifact and returns its download path.
func (c *Client) UploadPackage(ctx context.Context, token string, ident state.PackageIdent, checksum string, artifact io.Reader) (string, error) {
	var location string
	_, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/depot/pkgs" + pathEscape(ident.Origin, ident.Name, ident.Version, ident.Release),
		token:       token,
		query:       url.Values{"checksum": {checksum}},
		body:        artifact,
		contentType: "application/octet-stream",
		accept:      []int{http.StatusCreated},
	}, &location)
	return location, err
}

// DownloadPackage fetches a package artifact.
func (c *Client) DownloadPackage(ctx context.Context, token string, ident state.PackageIdent) (*Download, error) {
	var body []byte
	header, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/pkgs" + pathEscape(ident.Origin, ident.Name, ident.Version, ident.Release, "download"),
		token:  token,
	}, &body)
	if err != nil {
		return nil, err
	}
	return &Download{Filename: header.Get("X-Filename"), Body: body}, nil
}

// GetPackage fetches a release. An ident without a release resolves to the
// latest release of that version (or of the package).
func (c *Client) GetPackage(ctx context.Context, token string, ident state.PackageIdent) (*state.Package, error) {
	path := "/depot/pkgs" + pathEscape(ident.Origin, ident.Name)
	switch {
	case ident.Version == "":
		path += "/latest"
	case ident.Release == "":
		path += pathEscape(ident.Version, "latest")
	default:
		path += pathEscape(ident.Version, ident.Release)
	}

	var pkg state.Package
	_, err := c.do(ctx, request{method: http.MethodGet, path: path, token: token}, &pkg)
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ListPackages lists the releases of origin/name, or every package in the
// origin when name is empty.
func (c *Client) ListPackages(ctx context.Context, token, origin, name string, rangeStart int) (*PackageList, error) {
	path := "/depot/pkgs" + pathEscape(origin)
	if name != "" {
		path += pathEscape(name)
	}
	var list PackageList
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   path,
		token:  token,
		query:  rangeQuery(rangeStart),
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// ListPackageChannels lists the channels a release is in.
func (c *Client) ListPackageChannels(ctx context.Context, token string, ident state.PackageIdent) ([]string, error) {
	var channels []string
	_, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/depot/pkgs" + pathEscape(ident.Origin, ident.Name, ident.Version, ident.Release, "channels"),
		token:  token,
	}, &channels)
	return channels, err
}

// SetPackageVisibility toggles a release between public and private.
func (c *Client) SetPackageVisibility(ctx context.Context, token string, ident state.PackageIdent, v state.PackageVisibility) error {
	_, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/depot/pkgs" + pathEscape(ident.Origin, ident.Name, ident.Version, ident.Release, string(v)),
		token:  token,
	}, nil)
	return err
}

func rangeQuery(start int) url.Values {
	return url.Values{"range": {strconv.Itoa(start)}}
}
