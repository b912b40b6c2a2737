// Package rule chains business rules over repository entities.
//
// Each rule checks or processes an entity and hands over to the next rule in
// its chain; the rule a chain ends on completes the processing. Guard puts a
// chain in front of a repository's mutations.
package rule
