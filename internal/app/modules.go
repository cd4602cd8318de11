package app

import (
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/strategies/chatinput"
	"github.com/vk/flowgraph/strategies/llmchat"
	"github.com/vk/flowgraph/strategies/messageaction"
	"github.com/vk/flowgraph/strategies/transcription"
	"github.com/vk/flowgraph/strategies/voicedownload"
	"github.com/vk/flowgraph/strategies/voiceinput"
)

// coreModules is the definitive list of all strategy modules that are
// compiled into the flowgraph binary.
var coreModules = []executor.Module{
	&chatinput.Module{},
	&voiceinput.Module{},
	&llmchat.Module{},
	&transcription.Module{},
	&voicedownload.Module{},
	&messageaction.Module{},
}
