package roster

// Client is one connected, fully loaded player.
type Client struct {
	Name    string `json:"name"`
	SteamID string `json:"steam_id"`
	Car     string `json:"car"`
}

// ServerInfo holds the server metadata and the active roster, keyed by SteamID.
type ServerInfo struct {
	ServerName string            `json:"server_name"`
	HTTPPort   int               `json:"http_port"`
	TrackName  string            `json:"track_name"`
	Clients    map[string]Client `json:"clients"`
}
