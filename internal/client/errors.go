package client

import "strings"

// ErrorKind is the coarse class of a failure string
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindAuth
	KindPermission
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "authentication"
	case KindPermission:
		return "permission"
	case KindNetwork:
		return "network"
	default:
		return "generic"
	}
}

// Link is a remediation pointer shown next to an error
type Link struct {
	Label string
	URL   string
}

// Classified is a failure ready to show to the user
type Classified struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Links   []Link
}

// checked in order; the first kind with a matching substring wins
var errorPatterns = []struct {
	kind    ErrorKind
	needles []string
}{
	{KindAuth, []string{"401", "unauthorized", "invalid api key", "incorrect api key", "api key not configured", "api_key_invalid"}},
	{KindPermission, []string{"403", "forbidden", "quota", "permission", "billing", "429", "rate limit", "insufficient"}},
	{KindNetwork, []string{"network", "connection refused", "timeout", "timed out", "no such host", "deadline exceeded", "connection reset", "unexpected eof"}},
}

var kindMessages = map[ErrorKind]string{
	KindAuth:       "Authentication failed. Check that your API key is correct and still active.",
	KindPermission: "The provider refused the request. Your account may lack access to this model or have run out of quota.",
	KindNetwork:    "Could not reach the provider. Check your connection, or that the local server is running.",
	KindGeneric:    "Generation failed.",
}

type providerLinks struct {
	keys    Link
	billing Link
}

var remediation = map[string]providerLinks{
	"openai": {
		keys:    Link{"OpenAI API keys", "https://platform.openai.com/api-keys"},
		billing: Link{"OpenAI billing", "https://platform.openai.com/settings/organization/billing"},
	},
	"google": {
		keys:    Link{"Google AI Studio keys", "https://aistudio.google.com/app/apikey"},
		billing: Link{"Google Cloud billing", "https://console.cloud.google.com/billing"},
	},
	"grok": {
		keys:    Link{"xAI console", "https://console.x.ai"},
		billing: Link{"xAI billing", "https://console.x.ai"},
	},
	"anthropic": {
		keys:    Link{"Anthropic API keys", "https://console.anthropic.com/settings/keys"},
		billing: Link{"Anthropic billing", "https://console.anthropic.com/settings/billing"},
	},
}

var localSetup = map[string]Link{
	"a1111":    {"Start A1111 with --api", "https://github.com/AUTOMATIC1111/stable-diffusion-webui/wiki/API"},
	"comfyui":  {"ComfyUI setup", "https://github.com/comfyanonymous/ComfyUI"},
	"invokeai": {"InvokeAI setup", "https://invoke-ai.github.io/InvokeAI/"},
}

// ClassifyMessage matches a failure string against the known patterns
func ClassifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, p := range errorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.kind
			}
		}
	}
	return KindGeneric
}

// Classify turns err from provider into a user-facing message with links
func Classify(err error, provider string) Classified {
	if err == nil {
		return Classified{}
	}

	detail := err.Error()
	kind := ClassifyMessage(detail)
	c := Classified{Kind: kind, Message: kindMessages[kind], Detail: detail}

	links, cloud := remediation[provider]
	switch kind {
	case KindAuth:
		if cloud {
			c.Links = append(c.Links, links.keys)
		}
	case KindPermission:
		if cloud {
			c.Links = append(c.Links, links.billing, links.keys)
		}
	case KindNetwork:
		if link, ok := localSetup[provider]; ok {
			c.Links = append(c.Links, link)
		}
	}
	return c
}

// String renders the message and detail on one line
func (c Classified) String() string {
	if c.Detail == "" {
		return c.Message
	}
	return c.Message + " (" + c.Detail + ")"
}
