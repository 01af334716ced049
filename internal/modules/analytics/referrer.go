package analytics

import "strings"

// Traffic-source categories. The taxonomy is fixed; dashboards key on these
// exact names.
const (
	SourceOrganicSearch = "Organic Search"
	SourceSocialMedia   = "Social Media"
	SourceEmail         = "Email"
	SourcePaidAds       = "Paid Ads"
	SourceCampaign      = "Campaign"
	SourceDirect        = "Direct"
	SourceReferral      = "Referral"
)

// sourceOrder fixes the emit order of the categorized referrer view.
var sourceOrder = []string{
	SourceOrganicSearch,
	SourceSocialMedia,
	SourceEmail,
	SourcePaidAds,
	SourceCampaign,
	SourceDirect,
	SourceReferral,
}

// Static substring tables used for classification. Matching is substring
// based so "facebook.com", "m.facebook.com" and a "facebook_ads" UTM source
// all resolve the same way.
var (
	searchEngines = []string{
		"google", "bing", "baidu", "yahoo", "duckduckgo", "yandex", "ecosia", "sogou",
	}
	socialPlatforms = []string{
		"facebook", "twitter", "x.com", "instagram", "linkedin", "reddit",
		"pinterest", "tiktok", "youtube", "t.me", "telegram", "discord", "weibo",
	}
	emailKeywords = []string{"email", "newsletter"}
	paidKeywords  = []string{"cpc", "ads", "paid", "ppc"}
)

// classifyTrafficSource assigns a session to a traffic-source category.
// A present UTM source always wins over referrer-domain matching.
func classifyTrafficSource(utmSource, referrerDomain string) string {
	src := strings.ToLower(strings.TrimSpace(utmSource))
	if src != "" {
		switch {
		case containsAny(src, searchEngines):
			return SourceOrganicSearch
		case containsAny(src, socialPlatforms):
			return SourceSocialMedia
		case containsAny(src, emailKeywords):
			return SourceEmail
		case containsAny(src, paidKeywords):
			return SourcePaidAds
		default:
			return SourceCampaign
		}
	}

	domain := strings.ToLower(strings.TrimSpace(referrerDomain))
	if domain == "" {
		return SourceDirect
	}
	if containsAny(domain, searchEngines) {
		return SourceOrganicSearch
	}
	if containsAny(domain, socialPlatforms) {
		return SourceSocialMedia
	}
	return SourceReferral
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
