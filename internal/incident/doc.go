// Package incident provides the business boundary for Mailroom's incident
// intake loop. It defines the Record model, the pure keyword Classifier, the
// Ledger interface (dedup persistence), and the Processor that sequences one
// poll cycle: fetch, dedup-check, classify, acknowledge, file, mark handled.
package incident
