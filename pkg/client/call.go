package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// File is a parameter value uploaded as a multipart file part. It requires
// file upload support.
type File struct {
	// Name is the file name sent to the server; defaults to the base of Path.
	Name   string
	Path   string
	Reader io.Reader
}

// legacy methods served by the read-only API host
var readOnlyCalls = map[string]bool{
	"admin.getallocation":                  true,
	"admin.getappproperties":               true,
	"admin.getbannedusers":                 true,
	"admin.getlivestreamvialink":           true,
	"admin.getmetrics":                     true,
	"admin.getrestrictioninfo":             true,
	"application.getpublicinfo":            true,
	"auth.getapppublickey":                 true,
	"auth.getsession":                      true,
	"auth.getsignedpublicsessiondata":      true,
	"comments.get":                         true,
	"connect.getunconnectedfriendscount":   true,
	"dashboard.getactivity":                true,
	"dashboard.getcount":                   true,
	"dashboard.getglobalnews":              true,
	"dashboard.getnews":                    true,
	"dashboard.multigetcount":              true,
	"dashboard.multigetnews":               true,
	"data.getcookies":                      true,
	"events.get":                           true,
	"events.getmembers":                    true,
	"fbml.getcustomtags":                   true,
	"feed.getappfriendstories":             true,
	"feed.getregisteredtemplatebundlebyid": true,
	"feed.getregisteredtemplatebundles":    true,
	"fql.multiquery":                       true,
	"fql.query":                            true,
	"friends.arefriends":                   true,
	"friends.get":                          true,
	"friends.getappusers":                  true,
	"friends.getlists":                     true,
	"friends.getmutualfriends":             true,
	"gifts.get":                            true,
	"groups.get":                           true,
	"groups.getmembers":                    true,
	"intl.gettranslations":                 true,
	"links.get":                            true,
	"notes.get":                            true,
	"notifications.get":                    true,
	"pages.getinfo":                        true,
	"pages.isadmin":                        true,
	"pages.isappadded":                     true,
	"pages.isfan":                          true,
	"permissions.checkavailableapiaccess":  true,
	"permissions.checkgrantedapiaccess":    true,
	"photos.get":                           true,
	"photos.getalbums":                     true,
	"photos.gettags":                       true,
	"profile.getinfo":                      true,
	"profile.getinfooptions":               true,
	"stream.get":                           true,
	"stream.getcomments":                   true,
	"stream.getfilters":                    true,
	"users.getinfo":                        true,
	"users.getloggedinuser":                true,
	"users.getstandardinfo":                true,
	"users.hasapppermission":               true,
	"users.isappuser":                      true,
	"users.isverified":                     true,
	"video.getuploadlimits":                true,
}

// legacy methods that end the session on success
var sessionEndingCalls = map[string]bool{
	"auth.expiresession":       true,
	"auth.revokeauthorization": true,
}

// CallGraph invokes the Graph API. The request is always a POST; method
// travels as a parameter and defaults to GET. An error object in the
// response becomes an *APIError, and OAuthException or invalid_token clear
// the session first.
func (c *Client) CallGraph(
	ctx context.Context,
	path string,
	method string,
	params map[string]any,
) (
	any,
	error,
) {
	if method == "" {
		method = "GET"
	}
	fields := copyParams(params)
	fields["method"] = method

	result, err := c.oauthRequest(ctx, "graph", "graph", c.URL("graph", path, nil), fields)
	if err != nil {
		return nil, err
	}

	if m, ok := result.(map[string]any); ok {
		if _, hasError := m["error"]; hasError {
			apiErr := newAPIError(m)
			if apiErr.InvalidatesSession() {
				c.invalidateSession(apiErr.Type)
			}
			c.metrics.observeOutcome("graph", "graph", outcomeAPIError)
			return nil, apiErr
		}
	}
	c.metrics.observeOutcome("graph", "graph", outcomeOK)
	return result, nil
}

// CallLegacy invokes the legacy REST API. params must carry the "method"
// name. The call is routed to the read-only or video host when the method
// requires it.
func (c *Client) CallLegacy(
	ctx context.Context,
	params map[string]any,
) (
	any,
	error,
) {
	method := strings.ToLower(stringValue(params["method"]))
	if method == "" {
		return nil, ErrMissingMethod
	}

	fields := copyParams(params)
	fields["api_key"] = c.creds.AppID()
	fields["format"] = "json-strings"

	alias := legacyAlias(method)
	result, err := c.oauthRequest(ctx, alias, "legacy", c.URL(alias, "restserver.php", nil), fields)
	if err != nil {
		return nil, err
	}

	if m, ok := result.(map[string]any); ok {
		if _, hasError := m["error_code"]; hasError {
			c.metrics.observeOutcome(alias, "legacy", outcomeAPIError)
			return nil, newAPIError(m)
		}
	}

	if sessionEndingCalls[method] {
		c.DestroySession()
	}
	c.metrics.observeOutcome(alias, "legacy", outcomeOK)
	return result, nil
}

func legacyAlias(method string) string {
	switch {
	case method == "video.upload":
		return "api-video"
	case readOnlyCalls[method]:
		return "api-read"
	default:
		return "api"
	}
}

func copyParams(params map[string]any) map[string]any {
	fields := make(map[string]any, len(params)+3)
	for k, v := range params {
		fields[k] = v
	}
	return fields
}

// oauthRequest injects the access token, encodes the parameters, sends them
// and decodes the JSON response.
func (c *Client) oauthRequest(
	ctx context.Context,
	alias string,
	kind string,
	rawURL string,
	fields map[string]any,
) (
	any,
	error,
) {
	if _, ok := fields["access_token"]; !ok {
		if token := c.currentAccessToken(); token != "" {
			fields["access_token"] = token
		}
	}

	contentType, body, err := c.encodeBody(fields)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	respBody, err := c.makeRequest(ctx, rawURL, contentType, body)
	c.metrics.observeDuration(alias, kind, time.Since(start))
	if err != nil {
		c.metrics.observeOutcome(alias, kind, outcomeTransportError)
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(respBody))
	decoder.UseNumber()
	var result any
	if err := decoder.Decode(&result); err != nil {
		c.metrics.observeOutcome(alias, kind, outcomeDecodeError)
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return result, nil
}

// encodeBody serializes fields as multipart form data when file upload
// support is on, and as a urlencoded form otherwise.
func (c *Client) encodeBody(
	fields map[string]any,
) (
	string,
	[]byte,
	error,
) {
	values := make(map[string]string, len(fields))
	files := make(map[string]File)
	for key, value := range fields {
		switch v := value.(type) {
		case string:
			values[key] = v
		case File:
			files[key] = v
		case *File:
			files[key] = *v
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", nil, fmt.Errorf("failed to encode parameter %q: %v", key, err)
			}
			values[key] = string(encoded)
		}
	}

	if !c.creds.FileUploadSupport() {
		if len(files) > 0 {
			return "", nil, ErrFileUploadDisabled
		}
		form := url.Values{}
		for key, value := range values {
			form.Set(key, value)
		}
		return "application/x-www-form-urlencoded", []byte(form.Encode()), nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, key := range sortedKeys(values) {
		if err := writer.WriteField(key, values[key]); err != nil {
			return "", nil, fmt.Errorf("failed to write field %q: %v", key, err)
		}
	}
	for _, key := range sortedKeys(files) {
		if err := writeFilePart(writer, key, files[key]); err != nil {
			return "", nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return "", nil, fmt.Errorf("failed to close multipart body: %v", err)
	}
	return writer.FormDataContentType(), buf.Bytes(), nil
}

func writeFilePart(
	writer *multipart.Writer,
	key string,
	file File,
) error {
	reader := file.Reader
	if reader == nil {
		f, err := os.Open(file.Path)
		if err != nil {
			return fmt.Errorf("failed to open upload %q: %v", key, err)
		}
		defer f.Close()
		reader = f
	}

	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	part, err := writer.CreateFormFile(key, name)
	if err != nil {
		return fmt.Errorf("failed to create file part %q: %v", key, err)
	}
	if _, err := io.Copy(part, reader); err != nil {
		return fmt.Errorf("failed to write file part %q: %v", key, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

