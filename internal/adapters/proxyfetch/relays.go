package proxyfetch

import "net/url"

// relay is one public CORS relay and its URL-wrapping quirk. Order in
// defaultRelays is the fallback order; the first validated answer wins.
type relay struct {
	name      string
	wrap      func(target string) string
	postOK    bool // most public relays only forward GET
	enveloped bool // response wraps the payload in {contents, status}
}

func (r relay) supports(method string) bool {
	if method == "GET" || method == "HEAD" {
		return true
	}
	return r.postOK
}

var defaultRelays = []relay{
	{
		name: "corsproxy",
		wrap: func(target string) string {
			return "https://corsproxy.io/?url=" + url.QueryEscape(target)
		},
		postOK: true,
	},
	{
		name: "allorigins-raw",
		wrap: func(target string) string {
			return "https://api.allorigins.win/raw?url=" + url.QueryEscape(target)
		},
	},
	{
		name: "allorigins",
		wrap: func(target string) string {
			return "https://api.allorigins.win/get?url=" + url.QueryEscape(target)
		},
		enveloped: true,
	},
	{
		name: "codetabs",
		wrap: func(target string) string {
			return "https://api.codetabs.com/v1/proxy?quest=" + url.QueryEscape(target)
		},
	},
	{
		name: "thingproxy",
		wrap: func(target string) string {
			// thingproxy takes the target verbatim after its path
			return "https://thingproxy.freeboard.io/fetch/" + target
		},
		postOK: true,
	},
}
