// Package catalog knows the messaging services TextNexus can embed: their
// start URLs, brand colors, notification icons, user agents and the host
// patterns that map a page URL back to a service.
//
// Built-in entries can be overridden from a YAML file:
//
//	default_icon: ./public/3.png
//	services:
//	  - type: slack
//	    url: https://app.slack.com/client
//	  - type: mattermost
//	    name: Mattermost
//	    url: https://chat.example.com
//	    hosts: ["chat.example.com"]
package catalog
