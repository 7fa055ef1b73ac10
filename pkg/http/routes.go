package http

const (
	Ping          = "Ping"
	Version       = "Version"
	Notify        = "Notify"
	GitHubWebhook = "GitHubWebhook"
	JobStatus     = "JobStatus"
	RecentJobs    = "RecentJobs"
)
