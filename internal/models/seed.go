package models

// DefaultDrivers is the data set used when no drivers are stored yet or the
// stored value cannot be decoded.
func DefaultDrivers() []Driver {
	return []Driver{
		{ID: 1, Name: "Thabo Mthembu", Rating: 4.8, Phone: "082 123 4567", Distance: "2.1 km", ETA: "3 min", Price: "R15", Available: true},
		{ID: 2, Name: "Sarah Ndlovu", Rating: 4.9, Phone: "072 987 6543", Distance: "3.2 km", ETA: "5 min", Price: "R18", Available: true},
		{ID: 3, Name: "John Sithole", Rating: 4.7, Phone: "083 456 7890", Distance: "1.8 km", ETA: "2 min", Price: "R12", Available: true},
	}
}

// DefaultHistory is the ledger used when nothing is stored yet. Newest first.
func DefaultHistory() []Booking {
	return []Booking{
		{ID: 1, From: "Pretoria CBD", To: "Hatfield", Status: StatusCompleted, Method: MethodOnline, Price: "R15", Driver: "Thabo M."},
		{ID: 2, From: "Sandton", To: "Rosebank", Status: StatusActive, Method: MethodSMS, Price: "R25", Driver: "Sarah N."},
	}
}
