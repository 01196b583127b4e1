package capability

import "strings"

const summaryPreamble = "You are a helpful assistant with multiple capabilities:"

const summaryClosing = `Always use the most appropriate tool for each task. When working with files or technical tasks,
always attempt to use available tools rather than explaining manual steps.

Provide clear, helpful responses and confirm when operations have been completed successfully.`

// fragment is included when any of its tools is present.
type fragment struct {
	text  string
	tools []string
}

var fragments = []fragment{
	{
		text:  "- You can provide weather information for any city using the 'get_weather' tool.",
		tools: []string{"get_weather"},
	},
	{
		text: `- You can work with files and directories:
  * List contents with 'list_directory' or 'list_files'
  * Read files with 'read_file' or 'read_file_content'
  * Write or create files with 'write_file' or 'write_file_content'
  * Create directories with 'create_directory' or 'create_dir'
  * Find files with 'search_files' or 'search_for_files'
  * Get file information with 'get_file_info'
  * Move or rename files with 'move_file'
  * Edit existing files with 'edit_file'`,
		tools: []string{
			"read_file", "write_file", "list_directory", "create_directory", "search_files",
			"get_file_info", "move_file", "edit_file",
			"list_files", "read_file_content", "write_file_content", "create_dir", "search_for_files",
		},
	},
	{
		text: "- You can search the web for information using search tools like 'search', 'fetch_content', and FireCrawl tools.",
		tools: []string{
			"search", "fetch_content", "firecrawl_search", "firecrawl_scrape", "firecrawl_map", "firecrawl_crawl",
			"firecrawl_extract", "firecrawl_deep_research", "firecrawl_generate_llmstxt", "firecrawl_check_crawl_status",
		},
	},
	{
		text: "- You can store and retrieve information using the memory tools for knowledge graph operations.",
		tools: []string{
			"read_graph", "search_nodes", "create_entities", "create_relations", "add_observations",
			"delete_entities", "delete_observations", "delete_relations", "open_nodes",
		},
	},
	{
		text: "- You can interact with GitHub to manage repositories, files, code, issues, and pull requests.",
		tools: []string{
			"search_repositories", "create_repository", "get_file_contents", "create_or_update_file",
			"push_files", "create_issue", "create_pull_request", "create_branch", "fork_repository",
			"list_commits", "list_issues", "update_issue", "add_issue_comment", "search_code",
			"search_issues", "search_users", "get_issue", "get_pull_request", "list_pull_requests",
			"create_pull_request_review", "merge_pull_request", "get_pull_request_files",
			"get_pull_request_status", "update_pull_request_branch", "get_pull_request_comments", "get_pull_request_reviews",
		},
	},
	{
		text: "- You can control a web browser to navigate websites, fill forms, click elements, and take screenshots.",
		tools: []string{
			"browserbase_create_session", "browserbase_navigate", "browserbase_screenshot", "browserbase_click",
			"browserbase_fill", "browserbase_get_text", "browser_close", "browser_wait", "browser_resize",
			"browser_console_messages", "browser_handle_dialog", "browser_file_upload", "browser_install",
			"browser_press_key", "browser_navigate", "browser_navigate_back", "browser_navigate_forward",
			"browser_network_requests", "browser_pdf_save", "browser_snapshot", "browser_click", "browser_drag",
			"browser_hover", "browser_type", "browser_select_option", "browser_take_screenshot", "browser_tab_list",
			"browser_tab_new", "browser_tab_select", "browser_tab_close",
		},
	},
	{
		text: "- You can manage calendar events, schedule meetings, and find free time slots.",
		tools: []string{
			"list_events", "create_event", "find_free_slots", "get_attendee_status", "delete_event",
			"update_event", "get_calendars",
		},
	},
	{
		text: "- You can send, read, search, and manage emails through Gmail.",
		tools: []string{
			"send_email", "draft_email", "read_email", "search_emails", "modify_email", "delete_email",
			"list_email_labels", "batch_modify_emails", "batch_delete_emails", "create_label", "update_label",
			"delete_label", "get_or_create_label",
		},
	},
	{
		text:  "- You can search for Airbnb listings and get detailed information about specific properties.",
		tools: []string{"airbnb_search", "airbnb_listing_details"},
	},
	{
		text: "- You can convert text to speech, speech to text, clone voices, create sound effects, and manage voice agents using ElevenLabs.",
		tools: []string{
			"text_to_speech", "speech_to_text", "text_to_sound_effects", "search_voices",
			"get_voice", "voice_clone", "isolate_audio", "check_subscription", "create_agent",
			"add_knowledge_base_to_agent", "list_agents", "get_agent", "speech_to_speech",
			"text_to_voice", "create_voice_from_preview", "make_outbound_call", "search_voice_library",
			"list_phone_numbers", "play_audio",
		},
	},
}

// Summary builds the capability description for a set of tool names. The
// result depends only on which names are present.
func Summary(toolNames []string) string {
	present := make(map[string]struct{}, len(toolNames))
	for _, name := range toolNames {
		present[name] = struct{}{}
	}
	parts := []string{summaryPreamble}
	for _, frag := range fragments {
		if frag.matches(present) {
			parts = append(parts, frag.text)
		}
	}
	parts = append(parts, "", summaryClosing)
	return strings.Join(parts, "\n")
}

func (f fragment) matches(present map[string]struct{}) bool {
	for _, tool := range f.tools {
		if _, ok := present[tool]; ok {
			return true
		}
	}
	return false
}
