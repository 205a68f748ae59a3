// Package alerts evaluates heart-rate rules against stored readings and
// delivers webhook notifications to Slack, Teams, or generic HTTP targets.
//
// A rule fires when its condition holds for a reading from an agent and
// resolves on the first later reading from that agent where it no longer
// holds. Re-fires inside the rule's cooldown are suppressed.
package alerts
