package mapping

// Defaults returns the built-in field mapping used when no mapping file is
// configured. It mirrors the standard Brevo attribute set.
func Defaults() Document {
	return Document{
		Fields: []Field{
			{Local: "name", Remote: "FNAME", Type: "text", Split: []string{"FNAME", "LNAME"}},
			{Local: "email", Remote: "EMAIL", Type: "text"},
			{Local: "mobile", Remote: "SMS", Type: "text"},
			{Local: "phone", Remote: "PHONE", Type: "text"},
			{Local: "street", Remote: "ADDRESS", Type: "text"},
			{Local: "city", Remote: "CITY", Type: "text"},
			{Local: "zip", Remote: "ZIP", Type: "text"},
			{Local: "country", Remote: "COUNTRY", Type: "text", UseName: true},
			{Local: "website", Remote: "WEBSITE", Type: "text"},
		},
	}
}
