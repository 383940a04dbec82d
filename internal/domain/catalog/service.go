package catalog

// Service describes one embeddable messaging service.
type Service struct {
	Type  string `json:"type" yaml:"type"`
	Name  string `json:"name" yaml:"name"`
	URL   string `json:"url" yaml:"url"`
	Color string `json:"color" yaml:"color"`
	// Icon is the notification icon, a URL or a local file.
	Icon string `json:"icon,omitempty" yaml:"icon"`
	// UserAgent overrides the generated user agent.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent"`
	// Hosts are glob patterns matched against page hostnames.
	Hosts []string `json:"hosts,omitempty" yaml:"hosts"`
	// BadgeXPath selects unread counters on the service's pages.
	BadgeXPath string `json:"badge_xpath,omitempty" yaml:"badge_xpath"`
}

// merge overlays the non-empty fields of o.
func (s Service) merge(o Service) Service {
	if o.Name != "" {
		s.Name = o.Name
	}
	if o.URL != "" {
		s.URL = o.URL
	}
	if o.Color != "" {
		s.Color = o.Color
	}
	if o.Icon != "" {
		s.Icon = o.Icon
	}
	if o.UserAgent != "" {
		s.UserAgent = o.UserAgent
	}
	if len(o.Hosts) > 0 {
		s.Hosts = append([]string(nil), o.Hosts...)
	}
	if o.BadgeXPath != "" {
		s.BadgeXPath = o.BadgeXPath
	}
	return s
}

// Fallback is returned for unknown service types.
var Fallback = Service{
	Type:  "default",
	Name:  "TextNexus",
	URL:   "https://www.google.com",
	Color: "#1890ff",
}

var builtins = []Service{
	{
		Type: "whatsapp", Name: "WhatsApp", URL: "https://web.whatsapp.com", Color: "#25D366",
		Icon:       "https://upload.wikimedia.org/wikipedia/commons/6/6b/WhatsApp.svg",
		Hosts:      []string{"web.whatsapp.com"},
		BadgeXPath: `//span[contains(@aria-label, 'unread message')]`,
	},
	{
		Type: "gmail", Name: "Gmail", URL: "https://mail.google.com", Color: "#EA4335",
		Icon:       "https://upload.wikimedia.org/wikipedia/commons/7/7e/Gmail_icon_%282020%29.svg",
		Hosts:      []string{"mail.google.com"},
		BadgeXPath: `//div[contains(@class, 'bsU')]`,
	},
	{
		Type: "messenger", Name: "Messenger", URL: "https://www.messenger.com", Color: "#0084FF",
		Icon:  "https://upload.wikimedia.org/wikipedia/commons/b/be/Facebook_Messenger_logo_2020.svg",
		Hosts: []string{"messenger.com", "www.messenger.com"},
	},
	{
		Type: "slack", Name: "Slack", URL: "https://slack.com", Color: "#4A154B",
		Icon:  "https://upload.wikimedia.org/wikipedia/commons/d/d5/Slack_icon_2019.svg",
		Hosts: []string{"slack.com", "*.slack.com"},
	},
	{
		Type: "telegram", Name: "Telegram", URL: "https://web.telegram.org", Color: "#0088CC",
		Icon:  "https://upload.wikimedia.org/wikipedia/commons/8/82/Telegram_logo.svg",
		Hosts: []string{"web.telegram.org"},
	},
	{
		Type: "discord", Name: "Discord", URL: "https://discord.com/app", Color: "#5865F2",
		Icon:  "https://assets-global.website-files.com/6257adef93867e50d84d30e2/636e0a6a49cf127bf92de1e2_icon_clyde_blurple_RGB.png",
		Hosts: []string{"discord.com", "*.discord.com"},
	},
	{Type: "skype", Name: "Skype", URL: "https://web.skype.com", Color: "#00AFF0", Hosts: []string{"web.skype.com"}},
	{Type: "teams", Name: "Microsoft Teams", URL: "https://teams.microsoft.com", Color: "#6264A7", Hosts: []string{"teams.microsoft.com"}},
	{Type: "facebook", Name: "Facebook", URL: "https://www.facebook.com", Color: "#1877F2", Hosts: []string{"facebook.com", "www.facebook.com"}},
	{Type: "instagram", Name: "Instagram", URL: "https://www.instagram.com", Color: "#E4405F", Hosts: []string{"instagram.com", "www.instagram.com"}},
	{Type: "twitter", Name: "Twitter", URL: "https://twitter.com", Color: "#1DA1F2", Hosts: []string{"twitter.com", "x.com"}},
	{Type: "linkedin", Name: "LinkedIn", URL: "https://www.linkedin.com", Color: "#0A66C2", Hosts: []string{"linkedin.com", "www.linkedin.com"}},
	{Type: "github", Name: "GitHub", URL: "https://github.com", Color: "#181717", Hosts: []string{"github.com"}},
	{Type: "google-calendar", Name: "Google Calendar", URL: "https://calendar.google.com", Color: "#4285F4", Hosts: []string{"calendar.google.com"}},
	{Type: "google-drive", Name: "Google Drive", URL: "https://drive.google.com", Color: "#4285F4", Hosts: []string{"drive.google.com"}},
	{Type: "notion", Name: "Notion", URL: "https://www.notion.so", Color: "#000000", Hosts: []string{"notion.so", "www.notion.so"}},
	{Type: "trello", Name: "Trello", URL: "https://trello.com", Color: "#0079BF", Hosts: []string{"trello.com"}},
	{Type: "spotify", Name: "Spotify", URL: "https://open.spotify.com", Color: "#1DB954", Hosts: []string{"open.spotify.com"}},
	{Type: "zoom", Name: "Zoom", URL: "https://zoom.us", Color: "#2D8CFF", Hosts: []string{"zoom.us", "*.zoom.us"}},
	{Type: "youtube", Name: "YouTube", URL: "https://www.youtube.com", Color: "#FF0000", Hosts: []string{"youtube.com", "www.youtube.com"}},
	{Type: "tiktok", Name: "TikTok", URL: "https://www.tiktok.com", Color: "#000000", Hosts: []string{"tiktok.com", "www.tiktok.com"}},
	{Type: "reddit", Name: "Reddit", URL: "https://www.reddit.com", Color: "#FF4500", Hosts: []string{"reddit.com", "{www,old}.reddit.com"}},
	{Type: "salesforce", Name: "Salesforce", URL: "https://login.salesforce.com", Color: "#00A1E0", Hosts: []string{"*.salesforce.com"}},
	{Type: "hubspot", Name: "HubSpot", URL: "https://app.hubspot.com", Color: "#FF7A59", Hosts: []string{"app.hubspot.com"}},
}
