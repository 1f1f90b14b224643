package domain

// RemoteStatusMessage is fetched fresh for every dispatch attempt.
type RemoteStatusMessage struct {
	ShouldSend   bool   `json:"should_send"`
	WhatsAppText string `json:"message"`
	SMSText      string `json:"message_sms"`
	StoreStatus  string `json:"store_status"`
}

// StoreStatus is the richer status used by the status views.
type StoreStatus struct {
	IsOpen               bool    `json:"is_open"`
	CurrentStatus        string  `json:"current_status"`
	CurrentTime          string  `json:"current_time"`
	CurrentDayName       string  `json:"current_day_name"`
	NextOpeningFormatted *string `json:"next_opening_formatted"`
	ExpressDateFormatted *string `json:"express_date_formatted"`
	StoreHours           string  `json:"store_hours"`
	StoreAddress         string  `json:"store_address"`
	WhatsAppMessage      string  `json:"whatsapp_message"`
	SMSMessage           string  `json:"sms_message"`
}
