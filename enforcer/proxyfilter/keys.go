// The MIT License (MIT)

// Copyright (c) 2017-2020 Uber Technologies Inc.

// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package proxyfilter embeds the edge enforcer into an HTTP reverse
// proxy: it extracts the user key, classifies the operation, makes the
// admit decision and shapes both payload directions.
package proxyfilter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/uber/weir/types"
)

// Credential carriers recognized on a request, in precedence order:
// the Authorization header schemes, then the query-string forms.
const (
	authSchemeV2Prefix  = "AWS "
	authSchemeV4Prefix  = "AWS4-HMAC-SHA256 "
	authV4CredentialKey = "Credential="

	queryParamAccessKey  = "AWSAccessKeyId"
	queryParamCredential = "X-Amz-Credential"
)

// ExtractUserKey attributes a request to a user key: a validated
// credential, the invalid sentinel for a malformed one, or the
// anonymous key when the request carries none.
func ExtractUserKey(r *http.Request) string {
	if raw, ok := rawCredential(r.Header.Get("Authorization"), r.URL.Query()); ok {
		return types.NormalizeUserKey(raw)
	}
	return types.AnonymousUserKey
}

func rawCredential(authorization string, query url.Values) (string, bool) {
	if strings.HasPrefix(authorization, authSchemeV4Prefix) {
		rest := authorization[len(authSchemeV4Prefix):]
		if idx := strings.Index(rest, authV4CredentialKey); idx >= 0 {
			cred := rest[idx+len(authV4CredentialKey):]
			return credentialScope(cred), true
		}
		return "", true
	}
	if strings.HasPrefix(authorization, authSchemeV2Prefix) {
		// The key starts at the fixed offset after the scheme token
		// and runs to the signature separator.
		key := authorization[len(authSchemeV2Prefix):]
		if idx := strings.IndexByte(key, ':'); idx >= 0 {
			key = key[:idx]
		}
		return key, true
	}
	if v := query.Get(queryParamAccessKey); v != "" {
		return v, true
	}
	if v := query.Get(queryParamCredential); v != "" {
		return credentialScope(v), true
	}
	return "", false
}

// credentialScope trims a v4 credential scope
// (<key>/<date>/<region>/...) down to the key.
func credentialScope(cred string) string {
	if idx := strings.IndexAny(cred, "/,"); idx >= 0 {
		return cred[:idx]
	}
	return cred
}
