// Package subscription decodes subscription bodies into canonical Nodes.
//
// Decoding happens in two steps. Decode classifies the raw text with an
// ordered chain of detectors and returns a Payload holding either
// declarative proxy records or share links:
//
//  1. A proxy-list document ("proxies:" at the top or on its own line, or a
//     "proxy-groups:" key) is parsed as YAML.
//  2. Otherwise the text is tried as base64 (standard or URL-safe alphabet,
//     padding optional). The result is decoded again only when it looks
//     like subscription content, up to MaxDecodeDepth layers.
//  3. Otherwise every line starting with a known scheme is a share link.
//
// ParseLink, ParseRecord and ParsePayload then map each entry onto a
// model.Node. Entries that cannot be used are reported as *ParseError
// values that unwrap to ErrUnsupportedProtocol (vless, trojan) or
// ErrMalformed, so callers can count both separately.
package subscription
