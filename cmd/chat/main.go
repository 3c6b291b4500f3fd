package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Aria server URL")
	user := flag.String("user", "cli-user", "User ID for chat")
	session := flag.String("session", "", "Session ID (empty starts a new session)")
	flag.Parse()

	if *session == "" {
		*session = fmt.Sprintf("cli-%d", time.Now().Unix())
	}

	fmt.Println("Aria CLI Chat")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /weather <place>, /doc <query> <message>")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}

		req := map[string]interface{}{
			"user_id":    *user,
			"session_id": *session,
			"message":    input,
		}
		if rest, ok := strings.CutPrefix(input, "/weather "); ok {
			parts := strings.SplitN(rest, " ", 2)
			req["weather_location"] = parts[0]
			if len(parts) == 2 {
				req["message"] = parts[1]
			} else {
				req["message"] = "What's the weather like in " + parts[0] + "?"
			}
		}
		if rest, ok := strings.CutPrefix(input, "/doc "); ok {
			parts := strings.SplitN(rest, " ", 2)
			req["doc_query"] = parts[0]
			if len(parts) == 2 {
				req["message"] = parts[1]
			} else {
				req["message"] = parts[0]
			}
		}

		sendMessage(*server, req)
	}
}

func sendMessage(server string, req map[string]interface{}) {
	body, _ := json.Marshal(req)
	resp, err := http.Post(server+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		printError("Server returned %d: %s", resp.StatusCode, e.Error)
		return
	}

	streamed := false
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var frame struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			Intent  string `json:"intent"`
			Plan    string `json:"plan"`
			TurnID  string `json:"turn_id"`
		}
		if err := dec.Decode(&frame); err != nil {
			printError("Bad frame: %v", err)
			return
		}
		switch frame.Type {
		case "chunk":
			fmt.Print(frame.Content)
			streamed = true
		case "final":
			if !streamed {
				fmt.Print(frame.Content)
			}
			fmt.Printf("\n\033[90m[intent: %s | plan: %s]\033[0m\n", frame.Intent, frame.Plan)
		case "error":
			printError("%s", frame.Content)
		}
	}
}

func printError(format string, args ...interface{}) {
	fmt.Printf("\033[31m"+format+"\033[0m\n", args...)
}
