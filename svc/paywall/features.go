package paywall

// Feature is a premium benefit shown in the feature list and the success dialog.
type Feature struct {
	Icon string // icon name resolved by the view layer
	Text string
}

// DefaultFeatures lists the premium benefits in display order.
func DefaultFeatures() []Feature {
	return []Feature{
		{Icon: "zap", Text: "Ad-free experience"},
		{Icon: "star", Text: "Exclusive content"},
		{Icon: "shield", Text: "Priority support"},
		{Icon: "download", Text: "Offline access"},
	}
}
