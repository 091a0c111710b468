// Package client is the single point of outbound communication with the
// Graph and legacy REST APIs.
//
// A Client is built per incoming request. It resolves the current user and
// access token from the signed_request parameter, the legacy session cookie,
// an OAuth authorization code or the session store, and decodes API
// responses into plain values or typed errors.
//
// # Quick Start
//
//	creds, _ := credentials.New(credentials.Config{AppID: appID, Secret: secret})
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    req, rw := webctx.FromHTTP(w, r)
//	    store := session.NewPersistent(creds, backend, session.WithRequest(req))
//	    fb := client.New(creds, store, client.WithRequest(req))
//
//	    if fb.User(r.Context()) == "" {
//	        http.Redirect(rw, r, fb.LoginURL([]string{"email"}, ""), http.StatusSeeOther)
//	        return
//	    }
//	    me, err := fb.CallGraph(r.Context(), "/me", "GET", nil)
//	    ...
//	}
//
// Create the client before writing the response: cookies set afterwards are
// dropped and logged.
//
// # Calls
//
// CallGraph and CallLegacy always POST. The logical HTTP method travels in
// the "method" field. An "access_token" field is injected when the
// parameters carry none, using the transient token set by SetAccessToken or
// else the session's token. Non-string values are sent JSON encoded.
//
// # Error Handling
//
//	result, err := fb.CallGraph(ctx, "/me/feed", "POST", params)
//	var apiErr *client.APIError
//	var transportErr *client.TransportError
//	switch {
//	case errors.As(err, &apiErr):
//	    // the API answered with an error object; OAuthException and
//	    // invalid_token have already cleared the session
//	case errors.As(err, &transportErr):
//	    // the request never completed
//	}
//
// # Testing
//
// Depend on the API interface rather than *Client, and point a real client
// at a graphtest.Server with WithDomains.
package client
