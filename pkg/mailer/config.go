package mailer

// Config holds mail transport configuration.
// Postmark tokens are optional to support development environments where
// outbound mail is written to disk instead of sent.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	ReplyToEmail         string `env:"REPLY_TO_EMAIL"`
	DevOutputDir         string `env:"MAILER_DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
}
