package internal

import "strings"

type featureRule struct {
	keywords []string
	features []string
}

var defaultKeyFeatures = []string{
	"Professional service delivery",
	"Quality assurance",
	"Timely completion",
	"Customer support",
}

// Order matters: the first rule with a matching keyword wins.
var keyFeatureRules = []featureRule{
	{[]string{"monitor", "display", "screen"}, []string{"Full HD / 4K display support", "HDMI and VGA connectivity", "Low power consumption", "Adjustable stand design"}},
	{[]string{"laptop", "computer", "pc"}, []string{"High-performance processor", "Fast SSD storage", "Long battery life", "Modern connectivity ports"}},
	{[]string{"keyboard", "mouse", "peripheral"}, []string{"Ergonomic design", "Wireless connectivity", "Long battery life", "Compatible with multiple devices"}},
	{[]string{"chatbot", "ai", "artificial intelligence"}, []string{"24/7 automated customer support", "Multi-language support", "Real-time analytics dashboard", "Secure data handling"}},
	{[]string{"software", "application", "app"}, []string{"User-friendly interface", "Cross-platform compatibility", "Regular updates and support", "Secure data encryption"}},
	{[]string{"website", "web development", "web design"}, []string{"Mobile-responsive design", "Fast loading performance", "SEO-friendly structure", "Secure hosting integration"}},
	{[]string{"e-commerce", "online store", "shop"}, []string{"Secure payment gateway", "Inventory management system", "Order tracking functionality", "Mobile shopping experience"}},
	{[]string{"hosting", "server", "cloud"}, []string{"99.9% uptime guarantee", "Scalable infrastructure", "24/7 technical support", "Data backup and recovery"}},
	{[]string{"marketing", "digital marketing", "promotion"}, []string{"Social media campaign management", "Targeted ad optimization", "Performance tracking reports", "Lead generation strategy"}},
	{[]string{"seo", "search engine"}, []string{"Keyword research and optimization", "On-page and off-page SEO", "Monthly performance reports", "Google ranking improvement"}},
	{[]string{"social media", "smm"}, []string{"Content creation and scheduling", "Multi-platform management", "Engagement analytics", "Community growth strategy"}},
	{[]string{"design", "graphic", "logo"}, []string{"Professional design concepts", "Multiple revision rounds", "High-resolution deliverables", "Brand consistency"}},
	{[]string{"ui", "ux", "interface"}, []string{"User-centered design approach", "Interactive prototypes", "Usability testing", "Design system creation"}},
	{[]string{"consulting", "consultant", "advisory"}, []string{"Expert industry knowledge", "Customized solutions", "Strategic planning", "Ongoing support"}},
	{[]string{"training", "workshop", "course"}, []string{"Expert-led sessions", "Hands-on practice", "Course materials included", "Certificate of completion"}},
	{[]string{"maintenance", "support", "service"}, []string{"Regular system updates", "24/7 technical assistance", "Preventive maintenance", "Quick response time"}},
	{[]string{"network", "it infrastructure", "system"}, []string{"Secure network setup", "Performance monitoring", "Backup and disaster recovery", "Remote access support"}},
	{[]string{"security", "cyber", "firewall"}, []string{"Threat detection and prevention", "Regular security audits", "Data encryption", "Compliance certification"}},
	{[]string{"content", "writing", "copywriting"}, []string{"SEO-optimized content", "Original and plagiarism-free", "Multiple content formats", "Fast turnaround time"}},
	{[]string{"photography", "video", "photo"}, []string{"Professional equipment", "High-resolution output", "Post-production editing", "Multiple format delivery"}},
}

// GenerateKeyFeatures returns four selling points for a service name.
func GenerateKeyFeatures(serviceName string) []string {
	name := strings.ToLower(strings.TrimSpace(serviceName))
	if name != "" {
		for _, rule := range keyFeatureRules {
			for _, kw := range rule.keywords {
				if strings.Contains(name, kw) {
					return append([]string(nil), rule.features...)
				}
			}
		}
	}
	return append([]string(nil), defaultKeyFeatures...)
}
