// Package token signs and verifies the HMAC-SHA256 tokens Pusher clients
// and servers exchange: channel subscription auth, pusher:signin auth,
// and HTTP API request signatures.
package token

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign returns the lowercase hex HMAC-SHA256 of body keyed by secret,
// matching the signature format Pusher clients and the HTTP API both use.
func Sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the correct HMAC-SHA256 of body under
// secret, comparing in constant time to avoid a timing oracle.
func Verify(secret, body, sig string) bool {
	want := Sign(secret, body)
	return subtle.ConstantTimeCompare([]byte(want), []byte(sig)) == 1
}

// ChannelAuthString builds the string a client signs to subscribe to a
// private or presence channel: "socket_id:channel_name", with an
// optional ":user_data" suffix for presence channels.
func ChannelAuthString(socketID, channelName, userData string) string {
	s := socketID + ":" + channelName
	if userData != "" {
		s += ":" + userData
	}
	return s
}

// SignChannelAuth signs a channel subscription per ChannelAuthString and
// returns it prefixed with the app key, e.g. "app_key:signature".
func SignChannelAuth(appKey, appSecret, socketID, channelName, userData string) string {
	return appKey + ":" + Sign(appSecret, ChannelAuthString(socketID, channelName, userData))
}

// VerifyChannelAuth checks a client-supplied "app_key:signature" auth
// string against the expected signature for the given subscription.
func VerifyChannelAuth(appSecret, socketID, channelName, userData, auth string) bool {
	sig := stripKeyPrefix(auth)
	return Verify(appSecret, ChannelAuthString(socketID, channelName, userData), sig)
}

// SigninAuthString builds the string a client signs for pusher:signin:
// "socket_id::user::user_data".
func SigninAuthString(socketID, userData string) string {
	return socketID + "::user::" + userData
}

// SignSignin signs a signin payload, prefixed with the app key.
func SignSignin(appKey, appSecret, socketID, userData string) string {
	return appKey + ":" + Sign(appSecret, SigninAuthString(socketID, userData))
}

// VerifySignin checks a client-supplied signin auth string.
func VerifySignin(appSecret, socketID, userData, auth string) bool {
	sig := stripKeyPrefix(auth)
	return Verify(appSecret, SigninAuthString(socketID, userData), sig)
}

// CanonicalQuery builds the "<METHOD>\n<PATH>\n<sorted query>" string the
// HTTP API signs, excluding auth_signature itself from the query part.
// query carries one string value per parameter, matching how the trigger
// endpoints receive them (no repeated keys in this API).
func CanonicalQuery(method, path string, query map[string]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "auth_signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(query[k]))
	}
	return strings.ToUpper(method) + "\n" + path + "\n" + strings.Join(parts, "&")
}

// BodyMD5 returns the lowercase hex MD5 of an HTTP API request body, used
// as the body_md5 query parameter when the body is non-empty. MD5 here
// is a checksum, not a security boundary; the signature itself is HMAC.
func BodyMD5(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// SignRequest computes the auth_signature for an HTTP API request.
func SignRequest(appSecret, method, path string, query map[string]string) string {
	return Sign(appSecret, CanonicalQuery(method, path, query))
}

// VerifyRequest checks a client-supplied auth_signature against the
// expected value for the given request.
func VerifyRequest(appSecret, method, path string, query map[string]string, signature string) bool {
	return Verify(appSecret, CanonicalQuery(method, path, query), signature)
}

func stripKeyPrefix(auth string) string {
	for i := 0; i < len(auth); i++ {
		if auth[i] == ':' {
			return auth[i+1:]
		}
	}
	return auth
}
