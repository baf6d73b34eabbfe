package i18n

// Notice titles and bodies

func MsgErrorTitle(lang Lang) string {
	if lang == ZH {
		return "错误"
	}
	return "Error"
}

// MsgPurchaseError is the generic purchase failure body.
func MsgPurchaseError(lang Lang) string {
	if lang == ZH {
		return "您的购买出现了错误。"
	}
	return "There has been an error with your purchase."
}

// MsgPurchaseErrorWithCode is shown for store-reported purchase failures.
func MsgPurchaseErrorWithCode(lang Lang, code string) string {
	if lang == ZH {
		return "您的购买出现了错误。错误代码：" + code
	}
	return "There has been an error with your purchase. Error code:" + code
}

func MsgExpiredTitle(lang Lang) string {
	if lang == ZH {
		return "已过期"
	}
	return "Expired"
}

func MsgExpired(lang Lang) string {
	if lang == ZH {
		return "您的订阅已过期。"
	}
	return "Your subscription has expired."
}

// Screens

func MsgFetching(lang Lang) string {
	if lang == ZH {
		return "正在获取商品，请稍候..."
	}
	return "Fetching products please wait..."
}

func MsgPaywallTitle(lang Lang) string {
	if lang == ZH {
		return "欢迎使用 IAP 演示应用。"
	}
	return "Welcome to the IAP demo application."
}

func MsgPaywallBody(lang Lang) string {
	if lang == ZH {
		return "本应用需要订阅才能使用，购买订阅即可访问整个演示应用。"
	}
	return "This app requires a subscription to use, a purchase of the subscription grants you access to the entire demo app."
}

func MsgPurchaseButton(lang Lang, title string) string {
	if lang == ZH {
		return "购买 " + title
	}
	return "Purchase " + title
}

func MsgUnlocked(lang Lang) string {
	if lang == ZH {
		return "欢迎使用付费应用。"
	}
	return "Welcome to the paid application."
}

func MsgDismiss(lang Lang) string {
	if lang == ZH {
		return "按回车键关闭"
	}
	return "press enter to dismiss"
}

func MsgChoosePrompt(lang Lang) string {
	if lang == ZH {
		return "输入编号购买，输入 q 退出"
	}
	return "enter a number to purchase, q to quit"
}

func MsgUnknownChoice(lang Lang, choice string) string {
	if lang == ZH {
		return "无效的选择：" + choice
	}
	return "unknown choice: " + choice
}
