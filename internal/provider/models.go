package provider

type VideoMetadata struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	ChannelID   string   `json:"channel_id"`
	ChannelName string   `json:"channel_name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type ChannelMetadata struct {
	ChannelID   string `json:"channel_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SearchResult struct {
	Videos []VideoMetadata `json:"videos"`
	Total  int             `json:"total"`
}
