package usecase

import "strings"

type demoRule struct {
	keywords []string
	reply    string
}

// demoRules is checked in order; the first rule with a matching keyword wins.
var demoRules = []demoRule{
	{
		keywords: []string{"process", "order"},
		reply:    "Done! I've processed the pending orders and sent confirmation emails to customers. Tracking numbers will be generated once shipped.",
	},
	{
		keywords: []string{"candle", "stock"},
		reply:    "You have 42 Soy Candles in stock. At current sales velocity, you have about 3 weeks of inventory remaining.",
	},
	{
		keywords: []string{"sarah", "reply", "draft"},
		reply:    `Draft ready: "Hi Sarah! The Linen Throw dimensions are 150cm x 200cm, perfect for a queen-size bed. Let me know if you have any other questions!"`,
	},
	{
		keywords: []string{"revenue", "sales"},
		reply:    "Today's revenue is up 12% compared to yesterday! You've had 3 new orders and strong traffic from Instagram.",
	},
}

const demoDefaultReply = "I'm in demo mode right now. Try asking me to process orders, check candle stock, or draft a reply to Sarah!"

// DemoReply picks the canned reply for message.
func DemoReply(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range demoRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return demoDefaultReply
}
