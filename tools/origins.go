// Derive routing ids from a Telegram Desktop chat export.
//
// Export a chat as JSON (result.json), run this next to it, and it
// prints the chat_id to use in the admin routes API plus every forum
// topic found in the history.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

const channelIDOffset int64 = -1_000_000_000_000

func main() {
	raw, err := os.ReadFile("result.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	var result struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		ID       int64  `json:"id"`
		Messages []struct {
			Type   string `json:"type"`
			ID     int64  `json:"id"`
			Action string `json:"action"`
			Title  string `json:"title"`
		} `json:"messages"`
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse JSON: %v\n", err)
		os.Exit(1)
	}

	var chatID int64

	switch result.Type {
	case "public_supergroup", "private_supergroup", "public_channel", "private_channel":
		chatID = channelIDOffset - result.ID
	case "group", "basic_group":
		chatID = -result.ID
	default: // personal_chat, saved_messages
		chatID = result.ID
	}

	fmt.Printf("chat: %q (%s)\n", result.Name, result.Type)
	fmt.Printf("chat_id for routes: %d\n", chatID)

	// Forum topics show up as topic_created service entries; their
	// message id is the topic id a route can bind to.
	topics := make(map[int64]string)

	for _, msg := range result.Messages {
		if msg.Type == "service" && msg.Action == "topic_created" {
			topics[msg.ID] = msg.Title
		}
	}

	if len(topics) == 0 {
		return
	}

	ids := make([]int64, 0, len(topics))
	for id := range topics {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fmt.Println("topics:")

	for _, id := range ids {
		fmt.Printf("  topic_id %d: %q\n", id, topics[id])
	}
}
