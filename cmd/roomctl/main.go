package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"chat-relay/domain"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// roomctl renders the relay's debug inspector snapshots as tables, for
// operators poking at a running instance.
func main() {
	addr := flag.String("addr", "http://localhost:8081", "base URL of the relay debug inspector")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	var rooms []domain.RoomInfo
	if err := fetchJSON(client, *addr+"/debug/rooms", &rooms); err != nil {
		log.Fatalf("Failed to fetch rooms: %v", err)
	}

	var users []string
	if err := fetchJSON(client, *addr+"/debug/users", &users); err != nil {
		log.Fatalf("Failed to fetch users: %v", err)
	}

	color.Cyan.Printf("Relay at %s: %d room(s), %d user(s) online\n\n", *addr, len(rooms), len(users))

	color.Green.Println("Rooms")
	roomTable := tablewriter.NewWriter(os.Stdout)
	roomTable.SetHeader([]string{"Name", "Password"})
	for _, room := range rooms {
		locked := "open"
		if room.HasPassword {
			locked = "locked"
		}
		roomTable.Append([]string{room.Name, locked})
	}
	roomTable.Render()

	fmt.Println()
	color.Green.Println("Online users")
	userTable := tablewriter.NewWriter(os.Stdout)
	userTable.SetHeader([]string{"Username"})
	for _, user := range users {
		userTable.Append([]string{user})
	}
	userTable.Render()
}

func fetchJSON(client *http.Client, url string, out any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
