package config

// mergeConfigs merges override configuration into base
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	if override.Sessions.Root != "" {
		result.Sessions.Root = override.Sessions.Root
	}
	if override.Sessions.IdleTimeoutMinutes != 0 {
		result.Sessions.IdleTimeoutMinutes = override.Sessions.IdleTimeoutMinutes
	}

	result.Agent = mergeAgent(result.Agent, override.Agent)

	if override.Limits.AddressSpaceMB != 0 {
		result.Limits.AddressSpaceMB = override.Limits.AddressSpaceMB
	}
	if override.Limits.MaxProcs != 0 {
		result.Limits.MaxProcs = override.Limits.MaxProcs
	}
	if override.Limits.OpenFiles != 0 {
		result.Limits.OpenFiles = override.Limits.OpenFiles
	}

	if override.Watcher.DebounceMS != 0 {
		result.Watcher.DebounceMS = override.Watcher.DebounceMS
	}
	if len(override.Watcher.Ignore) > 0 {
		result.Watcher.Ignore = override.Watcher.Ignore
	}

	if override.Summarizer.Model != "" {
		result.Summarizer.Model = override.Summarizer.Model
	}
	if override.Summarizer.TimeoutSeconds != 0 {
		result.Summarizer.TimeoutSeconds = override.Summarizer.TimeoutSeconds
	}
	if override.Summarizer.MinTranscriptChars != 0 {
		result.Summarizer.MinTranscriptChars = override.Summarizer.MinTranscriptChars
	}

	if override.Notify.WebhookURL != "" {
		result.Notify.WebhookURL = override.Notify.WebhookURL
	}

	if override.Daemon.Socket != "" {
		result.Daemon.Socket = override.Daemon.Socket
	}
	if override.Daemon.Listen != "" {
		result.Daemon.Listen = override.Daemon.Listen
	}

	// Merge extensions
	if override.Extensions != nil {
		if result.Extensions == nil {
			result.Extensions = make(map[string]interface{})
		}
		for key, value := range override.Extensions {
			// If both base and override have the same extension key, merge them
			if baseValue, exists := result.Extensions[key]; exists {
				if baseMap, baseOk := baseValue.(map[string]interface{}); baseOk {
					if overrideMap, overrideOk := value.(map[string]interface{}); overrideOk {
						mergedMap := make(map[string]interface{})
						for k, v := range baseMap {
							mergedMap[k] = v
						}
						for k, v := range overrideMap {
							mergedMap[k] = v
						}
						result.Extensions[key] = mergedMap
						continue
					}
				}
			}
			// Otherwise just replace
			result.Extensions[key] = value
		}
	}

	return &result
}

func mergeAgent(base, override AgentConfig) AgentConfig {
	result := base

	if override.Binary != "" {
		result.Binary = override.Binary
	}
	if len(override.BaseArgs) > 0 {
		result.BaseArgs = override.BaseArgs
	}
	if override.Model != "" {
		result.Model = override.Model
	}

	return result
}
