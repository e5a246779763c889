package delivery

// Cost is the fixed price attached to every delivered record.
const Cost = 10

// Record is the payload accepted by the downstream ingestion API.
// Field order matches the wire contract.
type Record struct {
	UserInfo    UserInfo `json:"user_info"`
	MoreInfoURL string   `json:"more_info_url"`
	Source      string   `json:"source"`
	Cost        int      `json:"cost"`
	Preview     string   `json:"preview"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
}

type UserInfo struct {
	Name string `json:"name"`
}
