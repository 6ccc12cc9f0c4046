package prompts

// Builtin is the default prompt table
func Builtin() *Table {
	t, err := New(builtinSubjects)
	if err != nil {
		panic("prompts: invalid builtin table: " + err.Error())
	}
	return t
}

var builtinSubjects = []Subject{
	{
		Name: "國文",
		Tasks: []Task{
			{Name: "解釋詞語", Template: "請解釋以下詞語或句子的意思，並舉一個例句：\n{input}"},
			{Name: "修改作文", Template: "請幫我修改以下作文，指出錯字、語病，並給出修改後的版本：\n{input}"},
			{Name: "摘要重點", Template: "請用條列方式整理以下文章的重點：\n{input}"},
		},
	},
	{
		Name: "English",
		Tasks: []Task{
			{Name: "Grammar Check", Template: "Check the grammar of the following text, list each mistake and give a corrected version:\n{input}"},
			{Name: "Translate", Template: "Translate the following text and explain any idioms it contains:\n{input}"},
			{Name: "Vocabulary", Template: "Explain the meaning, part of speech and usage of the following words, with one example sentence each:\n{input}"},
		},
	},
	{
		Name: "Math",
		Tasks: []Task{
			{Name: "Explain", Template: "Explain the following math question step by step:\n{input}"},
			{Name: "Solve", Template: "Solve the following problem. Show every step and state the final answer clearly:\n{input}"},
			{Name: "Practice", Template: "Write three practice problems similar to the following one, with answers at the end:\n{input}"},
		},
	},
	{
		Name: "Science",
		Tasks: []Task{
			{Name: "Explain", Template: "Explain the following science concept in simple terms with an everyday example:\n{input}"},
			{Name: "Quiz", Template: "Create a five-question multiple-choice quiz about the following topic, with an answer key:\n{input}"},
		},
	},
	{
		Name: "History",
		Tasks: []Task{
			{Name: "Summarize", Template: "Summarize the following historical event: causes, key people, and consequences:\n{input}"},
			{Name: "Timeline", Template: "Build a short timeline of the most important dates related to:\n{input}"},
		},
	},
}
