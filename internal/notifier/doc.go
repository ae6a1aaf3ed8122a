// Package notifier broadcasts scraped news to every chat that has talked to
// the bot.
//
// # Recipients
//
// A Dispatcher starts from a seed set of chat ids (config plus whatever the
// optional RecipientStore remembered). Before each broadcast it asks the bot
// for recent senders and unions them in. Recipients are never removed while
// the process runs.
//
// # Failure policy
//
// Connecting retries timeouts and fails hard once the attempts are used up.
// Discovery and delivery retry network faults and then degrade: discovery
// yields nothing new, a failed delivery only shrinks the sent list.
package notifier
